package eventbus_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/driphq/drip/pkg/channels/gochannel"
	"github.com/driphq/drip/pkg/eventbus"
	"github.com/driphq/drip/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

// A published event must come back out of Subscribe decoded into its typed
// struct and routed to the handler registered for its type.
func TestWatermillEventBus_PublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.ExecutionCompleted, 1)

	err := bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event any) error {
		if completed, ok := event.(*events.ExecutionCompleted); ok {
			received <- completed
		}

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(t.Context()))

	published := events.ExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, "rule-1"),
		ExecutionID:   "exec-1",
		UserID:        "u1",
		StepsExecuted: 3,
		DurationMs:    1200,
	}
	require.NoError(t, bus.Publish(t.Context(), "execution.completed", published))

	select {
	case completed := <-received:
		assert.Equal(t, "exec-1", completed.ExecutionID)
		assert.Equal(t, "u1", completed.UserID)
		assert.Equal(t, 3, completed.StepsExecuted)
		assert.Equal(t, "rule-1", completed.RuleID)
		assert.Equal(t, events.ExecutionCompletedEvent, completed.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered to the handler")
	}
}

// Events without a registered handler are acked and skipped; a later event of
// a handled type still arrives.
func TestWatermillEventBus_UnhandledTypesAreSkipped(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.RuleDeleted, 1)

	err := bus.Handle(events.RuleDeletedEvent, func(_ context.Context, event any) error {
		if deleted, ok := event.(*events.RuleDeleted); ok {
			received <- deleted
		}

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(t.Context()))

	require.NoError(t, bus.Publish(t.Context(), "rule.created", events.RuleCreated{
		BaseEvent: events.NewBaseEvent(events.RuleCreatedEvent, "rule-1"),
		RuleName:  "Welcome series",
	}))
	require.NoError(t, bus.Publish(t.Context(), "rule.deleted", events.RuleDeleted{
		BaseEvent:           events.NewBaseEvent(events.RuleDeletedEvent, "rule-1"),
		CancelledExecutions: 2,
	}))

	select {
	case deleted := <-received:
		assert.Equal(t, 2, deleted.CancelledExecutions)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered to the handler")
	}
}

func TestRegisterLoggingHandlers_ConsumesLifecycleEvents(t *testing.T) {
	bus := newTestBus(t)

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	require.NoError(t, eventbus.RegisterLoggingHandlers(bus, logger))
	require.NoError(t, bus.Subscribe(t.Context()))

	// CreateTestChannel blocks Publish until the handler acks, so the log
	// line is written before Publish returns.
	require.NoError(t, bus.Publish(t.Context(), "execution.failed", events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, "rule-1"),
		ExecutionID: "exec-1",
		UserID:      "u1",
		FailedStep:  1,
		Error:       "mailer down",
	}))

	assert.Contains(t, buf.String(), "execution.failed")
	assert.Contains(t, buf.String(), "Lifecycle event consumed")
}
