// Package logevent provides the log_event action executor, a fire-and-forget
// write to the analytics event logger.
package logevent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/protocol"
)

// ErrMissingEventName is returned when the action parameters omit event_name.
var ErrMissingEventName = errors.New("log_event requires an 'event_name' parameter")

type Action struct {
	EventName string
	Data      map[string]any

	events protocol.EventLogger
}

func NewAction(params map[string]any, events protocol.EventLogger) (*Action, error) {
	eventName, _ := params["event_name"].(string)
	if eventName == "" {
		return nil, ErrMissingEventName
	}

	data, _ := params["data"].(map[string]any)

	return &Action{EventName: eventName, Data: data, events: events}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) error {
	execution := actionCtx.Execution

	data := make(map[string]any, len(a.Data)+2)
	for key, value := range a.Data {
		data[key] = value
	}

	data["execution_id"] = execution.ID
	data["rule_id"] = execution.RuleID

	err := a.events.LogEvent(ctx, execution.UserID, a.EventName, data)
	if err != nil {
		return fmt.Errorf("event logger failed for %s: %w", a.EventName, err)
	}

	logger.DebugContext(ctx, "Event logged",
		"action_type", "log_event",
		"event_name", a.EventName)

	return nil
}

type Factory struct {
	events protocol.EventLogger
}

func NewFactory(events protocol.EventLogger) *Factory {
	return &Factory{events: events}
}

func (*Factory) ID() models.ActionType {
	return models.ActionLogEvent
}

func (f *Factory) Create(params map[string]any) (protocol.ActionExecutor, error) {
	return NewAction(params, f.events)
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event_name": map[string]any{"type": "string", "minLength": 1},
			"data":       map[string]any{"type": "object"},
		},
		"required": []any{"event_name"},
	}
}
