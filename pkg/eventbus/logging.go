package eventbus

import (
	"context"
	"log/slog"

	"github.com/driphq/drip/pkg/events"
)

// lifecycleEventTypes lists every event type the bus carries.
var lifecycleEventTypes = []events.EventType{
	events.EventReceivedEvent,
	events.ExecutionStartedEvent,
	events.ExecutionCompletedEvent,
	events.ExecutionFailedEvent,
	events.ExecutionCancelledEvent,
	events.RuleCreatedEvent,
	events.RuleUpdatedEvent,
	events.RuleDeletedEvent,
}

// RegisterLoggingHandlers attaches a handler for every lifecycle event type
// that logs the decoded event. It gives each engine process a consumer-side
// audit trail of its own bus traffic; call Subscribe afterwards to start
// consumption.
func RegisterLoggingHandlers(bus EventSubscriber, logger *slog.Logger) error {
	logger = logger.With("module", "event_audit")

	for _, eventType := range lifecycleEventTypes {
		err := bus.Handle(eventType, func(ctx context.Context, _ any) error {
			logger.InfoContext(ctx, "Lifecycle event consumed", "event_type", string(eventType))

			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
