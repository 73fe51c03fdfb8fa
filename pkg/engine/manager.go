package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/driphq/drip/pkg/conditions"
	"github.com/driphq/drip/pkg/eventbus"
	"github.com/driphq/drip/pkg/events"
	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/persistence"
	"github.com/driphq/drip/pkg/profile"
	"github.com/driphq/drip/pkg/protocol"
	"github.com/driphq/drip/pkg/registry"
	"github.com/google/uuid"
)

// DefaultMaxLifetime bounds how long an execution may stay live before the
// reaper cancels it.
const DefaultMaxLifetime = 24 * time.Hour

var (
	// ErrExecutionNotFound is returned when no live execution has the given ID.
	ErrExecutionNotFound = errors.New("execution not found")
	// ErrExecutionNotActive is returned when an operation requires an Active execution.
	ErrExecutionNotActive = errors.New("execution is not active")
)

// Manager owns the execution state machine. All transitions for a single
// execution are serialized through one coarse mutex: this system has modest
// throughput needs, so a global lock per structure is the simple correct
// choice.
//
// Side-effecting work (action invocation, persistence, event publishing)
// always happens outside the lock; state is snapshotted under the lock and
// re-validated when the result comes back.
type Manager struct {
	mu         sync.Mutex
	executions map[string]*models.Execution

	rules     *RuleStore
	registry  *registry.Registry
	profiles  profile.Store
	evaluator *conditions.Evaluator
	scheduler *Scheduler
	persist   persistence.Persistence
	bus       eventbus.EventPublisher
	logger    *slog.Logger
	lifetime  time.Duration

	now func() time.Time
}

// NewManager creates an execution manager. Call scheduler.Bind(m.Dispatch)
// after construction to close the dispatch loop.
func NewManager(
	rules *RuleStore,
	reg *registry.Registry,
	profiles profile.Store,
	evaluator *conditions.Evaluator,
	scheduler *Scheduler,
	persist persistence.Persistence,
	bus eventbus.EventPublisher,
	logger *slog.Logger,
	lifetime time.Duration,
) *Manager {
	if lifetime <= 0 {
		lifetime = DefaultMaxLifetime
	}

	return &Manager{
		executions: make(map[string]*models.Execution),
		rules:      rules,
		registry:   reg,
		profiles:   profiles,
		evaluator:  evaluator,
		scheduler:  scheduler,
		persist:    persist,
		bus:        bus,
		logger:     logger.With("module", "execution_manager"),
		lifetime:   lifetime,
		now:        time.Now,
	}
}

// StartExecution creates a new Active execution for the rule and schedules
// its first action. extraDelay is applied before the first action's own
// delay: the trigger matcher passes the trigger's delayMinutes, follow-ups
// pass their requested delay.
func (m *Manager) StartExecution(
	ctx context.Context,
	rule *models.AutomationRule,
	userID string,
	triggerData map[string]any,
	extraDelay time.Duration,
) (*models.Execution, error) {
	execution := &models.Execution{
		ID:          "exec-" + uuid.New().String(),
		RuleID:      rule.ID,
		UserID:      userID,
		TriggerData: triggerData,
		CurrentStep: 0,
		Status:      models.ExecutionStatusActive,
		StartedAt:   m.now().UTC(),
	}

	m.mu.Lock()
	m.executions[execution.ID] = execution
	m.mu.Unlock()

	m.recordStart(ctx, execution)

	m.publish(ctx, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, rule.ID),
		ExecutionID: execution.ID,
		UserID:      userID,
		TriggerData: triggerData,
		ActionCount: len(rule.Actions),
	})

	m.logger.InfoContext(ctx, "Execution started",
		"execution_id", execution.ID,
		"rule_id", rule.ID,
		"user_id", userID,
		"action_count", len(rule.Actions))

	// A rule with no actions completes on the spot.
	if len(rule.Actions) == 0 {
		m.finish(ctx, execution.ID, models.ExecutionStatusCompleted, "")

		return execution.Clone(), nil
	}

	runAt := m.now().Add(extraDelay + minutes(rule.Actions[0].DelayMinutes))
	m.scheduler.Schedule(execution.ID, 0, runAt)

	return execution.Clone(), nil
}

// Dispatch resolves and runs one scheduled action. Wired as the scheduler's
// dispatch callback. Orphaned items (execution cancelled, rule deleted, step
// already advanced) are dropped without error.
func (m *Manager) Dispatch(ctx context.Context, executionID string, actionIndex int) {
	snapshot, ok := m.snapshotIfCurrent(executionID, actionIndex)
	if !ok {
		m.logger.DebugContext(ctx, "Dropping orphaned scheduled action",
			"execution_id", executionID,
			"action_index", actionIndex)

		return
	}

	rule, ok := m.rules.Get(snapshot.RuleID)
	if !ok {
		m.finish(ctx, executionID, models.ExecutionStatusFailed, "rule removed")

		return
	}

	if actionIndex >= len(rule.Actions) {
		m.logger.WarnContext(ctx, "Scheduled action index out of range",
			"execution_id", executionID,
			"action_index", actionIndex,
			"rule_id", rule.ID)

		return
	}

	action := rule.Actions[actionIndex]

	logger := m.logger.With(
		"execution_id", executionID,
		"rule_id", rule.ID,
		"user_id", snapshot.UserID,
		"action_index", actionIndex,
		"action_type", action.Type)

	// Guard condition: unmet means skip the step, not fail it.
	if len(action.Condition) > 0 && !m.guardHolds(ctx, action.Condition, snapshot) {
		logger.InfoContext(ctx, "Action guard not met, skipping step")
		m.OnActionResult(ctx, executionID, actionIndex, nil)

		return
	}

	err := m.invoke(ctx, action, snapshot, logger)
	if err != nil {
		logger.WarnContext(ctx, "Action failed", "error", err)
	}

	m.OnActionResult(ctx, executionID, actionIndex, err)
}

// OnActionResult applies one action's outcome to the state machine. It is
// idempotent per (executionID, actionIndex): results for a stale or already
// advanced step, or for an execution that has left Active, are ignored.
func (m *Manager) OnActionResult(ctx context.Context, executionID string, actionIndex int, actionErr error) {
	m.mu.Lock()

	execution, ok := m.executions[executionID]
	if !ok || execution.Status != models.ExecutionStatusActive || execution.CurrentStep != actionIndex {
		m.mu.Unlock()

		return
	}

	rule, ruleOK := m.rules.Get(execution.RuleID)
	if !ruleOK {
		m.mu.Unlock()
		m.finish(ctx, executionID, models.ExecutionStatusFailed, "rule removed")

		return
	}

	action := rule.Actions[actionIndex]

	if actionErr != nil && action.IsRequired {
		m.mu.Unlock()
		m.finish(ctx, executionID, models.ExecutionStatusFailed,
			fmt.Sprintf("required action %d (%s) failed: %v", actionIndex, action.Type, actionErr))

		return
	}

	if actionErr != nil {
		m.logger.InfoContext(ctx, "Optional action failed, continuing",
			"execution_id", executionID,
			"action_index", actionIndex,
			"error", actionErr)
	}

	execution.CurrentStep++

	if execution.CurrentStep >= len(rule.Actions) {
		m.mu.Unlock()
		m.finish(ctx, executionID, models.ExecutionStatusCompleted, "")

		return
	}

	next := rule.Actions[execution.CurrentStep]
	runAt := m.now().Add(minutes(next.DelayMinutes))
	nextStep := execution.CurrentStep
	m.mu.Unlock()

	m.scheduler.Schedule(executionID, nextStep, runAt)
}

// CancelExecution transitions an Active execution to Cancelled. Safe to call
// concurrently with an in-flight dispatch: the stale result is discarded by
// OnActionResult's status re-check.
func (m *Manager) CancelExecution(ctx context.Context, executionID, reason string) error {
	m.mu.Lock()

	execution, ok := m.executions[executionID]
	if !ok {
		m.mu.Unlock()

		return ErrExecutionNotFound
	}

	if execution.Status != models.ExecutionStatusActive {
		m.mu.Unlock()

		return ErrExecutionNotActive
	}

	m.mu.Unlock()

	m.finish(ctx, executionID, models.ExecutionStatusCancelled, reason)

	return nil
}

// CancelExecutionsForRule cancels every live execution of a rule and returns
// how many were cancelled. Used when a rule is deleted.
func (m *Manager) CancelExecutionsForRule(ctx context.Context, ruleID string) int {
	m.mu.Lock()

	ids := make([]string, 0)

	for id, execution := range m.executions {
		if execution.RuleID == ruleID && execution.Status == models.ExecutionStatusActive {
			ids = append(ids, id)
		}
	}

	m.mu.Unlock()

	for _, id := range ids {
		m.finish(ctx, id, models.ExecutionStatusCancelled, "rule deleted")
	}

	return len(ids)
}

// ReapExpired cancels live executions older than the lifetime limit and
// drops terminal executions past the same cutoff from the live table.
// Returns how many executions were cancelled.
func (m *Manager) ReapExpired(ctx context.Context) int {
	cutoff := m.now().Add(-m.lifetime)

	m.mu.Lock()

	expired := make([]string, 0)

	for id, execution := range m.executions {
		if !execution.StartedAt.Before(cutoff) {
			continue
		}

		if execution.Status == models.ExecutionStatusActive {
			expired = append(expired, id)
		} else {
			delete(m.executions, id)
		}
	}

	m.mu.Unlock()

	for _, id := range expired {
		m.finish(ctx, id, models.ExecutionStatusCancelled, "exceeded max execution lifetime")
	}

	if len(expired) > 0 {
		m.logger.InfoContext(ctx, "Reaped expired executions", "cancelled", len(expired))
	}

	return len(expired)
}

// GetExecution returns a copy of a live (or not yet reaped) execution.
func (m *Manager) GetExecution(executionID string) (*models.Execution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	execution, ok := m.executions[executionID]
	if !ok {
		return nil, false
	}

	return execution.Clone(), true
}

// ExecutionsForUser returns copies of the user's executions still in the
// live table, newest first.
func (m *Manager) ExecutionsForUser(userID string) []*models.Execution {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Execution, 0)

	for _, execution := range m.executions {
		if execution.UserID == userID {
			out = append(out, execution.Clone())
		}
	}

	sortExecutionsNewestFirst(out)

	return out
}

// snapshotIfCurrent returns a copy of the execution only when it is still
// Active and waiting on exactly this action index.
func (m *Manager) snapshotIfCurrent(executionID string, actionIndex int) (*models.Execution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	execution, ok := m.executions[executionID]
	if !ok || execution.Status != models.ExecutionStatusActive || execution.CurrentStep != actionIndex {
		return nil, false
	}

	return execution.Clone(), true
}

// guardHolds evaluates an action's guard condition map. Parse failures
// evaluate false: a broken guard skips the step rather than crashing dispatch.
func (m *Manager) guardHolds(ctx context.Context, guard map[string]any, execution *models.Execution) bool {
	conds, err := conditions.Parse(guard)
	if err != nil {
		m.logger.WarnContext(ctx, "Unparseable action guard",
			"execution_id", execution.ID,
			"error", err)

		return false
	}

	return m.evaluator.EvaluateAll(ctx, conds, execution.UserID, execution.TriggerData)
}

// invoke builds the executor for one action and runs it. Collaborator
// failures come back as errors, never as panics into the dispatch loop.
func (m *Manager) invoke(ctx context.Context, action *models.AutomationAction, execution *models.Execution, logger *slog.Logger) error {
	executor, err := m.registry.CreateExecutor(action.Type, action.Parameters)
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	var userProfile map[string]any

	if m.profiles != nil {
		userProfile, err = m.profiles.GetUserData(ctx, execution.UserID)
		if err != nil && !errors.Is(err, profile.ErrUserNotFound) {
			logger.WarnContext(ctx, "Failed to load user profile for action", "error", err)
		}
	}

	return executor.Execute(ctx, protocol.ActionContext{
		Execution: execution,
		Profile:   userProfile,
	}, logger)
}

// finish performs the single transition out of Active. The first caller
// wins; any concurrent attempt finds a terminal status and backs off.
func (m *Manager) finish(ctx context.Context, executionID string, status models.ExecutionStatus, errorMessage string) {
	m.mu.Lock()

	execution, ok := m.executions[executionID]
	if !ok || execution.Status != models.ExecutionStatusActive {
		m.mu.Unlock()

		return
	}

	completedAt := m.now().UTC()
	execution.Status = status
	execution.CompletedAt = &completedAt
	execution.ErrorMessage = errorMessage
	snapshot := execution.Clone()

	m.mu.Unlock()

	m.scheduler.Remove(executionID)

	m.recordEnd(ctx, snapshot)
	m.publishTerminal(ctx, snapshot)

	m.logger.InfoContext(ctx, "Execution finished",
		"execution_id", snapshot.ID,
		"rule_id", snapshot.RuleID,
		"status", snapshot.Status,
		"steps_executed", snapshot.CurrentStep,
		"error", snapshot.ErrorMessage)
}

// recordStart writes the audit record for a new execution. Audit storage is
// not authoritative while the execution is live, so failures are logged and
// swallowed.
func (m *Manager) recordStart(ctx context.Context, execution *models.Execution) {
	if m.persist == nil {
		return
	}

	err := m.persist.RecordExecutionStart(ctx, execution.Clone())
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to record execution start",
			"execution_id", execution.ID,
			"error", err)
	}
}

func (m *Manager) recordEnd(ctx context.Context, execution *models.Execution) {
	if m.persist == nil {
		return
	}

	err := m.persist.RecordExecutionEnd(ctx, execution)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to record execution end",
			"execution_id", execution.ID,
			"error", err)
	}
}

func (m *Manager) publish(ctx context.Context, event eventbus.Event) {
	if m.bus == nil {
		return
	}

	err := m.bus.Publish(ctx, string(event.GetType()), event)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to publish lifecycle event",
			"event_type", event.GetType(),
			"error", err)
	}
}

func (m *Manager) publishTerminal(ctx context.Context, execution *models.Execution) {
	durationMs := int64(0)
	if execution.CompletedAt != nil {
		durationMs = execution.CompletedAt.Sub(execution.StartedAt).Milliseconds()
	}

	switch execution.Status {
	case models.ExecutionStatusCompleted:
		m.publish(ctx, events.ExecutionCompleted{
			BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, execution.RuleID),
			ExecutionID:   execution.ID,
			UserID:        execution.UserID,
			StepsExecuted: execution.CurrentStep,
			DurationMs:    durationMs,
		})
	case models.ExecutionStatusFailed:
		m.publish(ctx, events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.RuleID),
			ExecutionID: execution.ID,
			UserID:      execution.UserID,
			FailedStep:  execution.CurrentStep,
			Error:       execution.ErrorMessage,
			DurationMs:  durationMs,
		})
	case models.ExecutionStatusCancelled:
		m.publish(ctx, events.ExecutionCancelled{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, execution.RuleID),
			ExecutionID: execution.ID,
			UserID:      execution.UserID,
			Reason:      execution.ErrorMessage,
			DurationMs:  durationMs,
		})
	case models.ExecutionStatusActive:
		// Not a terminal status; nothing to publish.
	}
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func sortExecutionsNewestFirst(executions []*models.Execution) {
	slices.SortFunc(executions, func(a, b *models.Execution) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
}
