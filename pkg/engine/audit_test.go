package engine

import (
	"log/slog"
	"os"
	"testing"

	"github.com/driphq/drip/pkg/actions/logevent"
	"github.com/driphq/drip/pkg/mocks"
	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/profile"
	"github.com/driphq/drip/pkg/registry"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Audit storage and the event bus are best-effort collaborators: the engine
// must call them on every lifecycle transition but never depend on them.
func TestEngine_AuditTrailAndLifecycleEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persist := &mocks.MockPersistence{}
	persist.On("SaveRule", mock.Anything, mock.Anything).Return(nil)
	persist.On("RecordExecutionStart", mock.Anything, mock.Anything).Return(nil)
	persist.On("RecordExecutionEnd", mock.Anything, mock.Anything).Return(nil)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	reg := registry.NewRegistry(logger)
	reg.RegisterExecutor(logevent.NewFactory(&fakeEventLogger{}))

	eng := New(Config{}, reg, profile.NewMemoryStore(), persist, bus, nil, logger)

	require.NoError(t, eng.SaveRule(t.Context(), &models.AutomationRule{
		Name:     "Audited rule",
		Trigger:  models.TriggerCondition{EventType: models.EventUserSignup},
		Actions:  []*models.AutomationAction{{Type: models.ActionLogEvent, Parameters: map[string]any{"event_name": "audit"}}},
		IsActive: true,
	}))

	ids, err := eng.TriggerEvent(t.Context(), models.EventUserSignup, "u1", nil)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	eng.scheduler.DispatchDue(t.Context())

	persist.AssertCalled(t, "RecordExecutionStart", mock.Anything, mock.Anything)
	persist.AssertCalled(t, "RecordExecutionEnd", mock.Anything, mock.Anything)

	bus.AssertCalled(t, "Publish", mock.Anything, "rule.created", mock.Anything)
	bus.AssertCalled(t, "Publish", mock.Anything, "execution.started", mock.Anything)
	bus.AssertCalled(t, "Publish", mock.Anything, "event.received", mock.Anything)
	bus.AssertCalled(t, "Publish", mock.Anything, "execution.completed", mock.Anything)
}
