package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/driphq/drip/pkg/conditions"
	"github.com/driphq/drip/pkg/eventbus"
	"github.com/driphq/drip/pkg/events"
	"github.com/driphq/drip/pkg/history"
	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/otelhelper"
	"github.com/driphq/drip/pkg/persistence"
	"github.com/driphq/drip/pkg/profile"
	"github.com/driphq/drip/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrUnknownEventType is returned when an inbound event carries an unsupported type.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrMissingUserID is returned when an inbound event has no user ID.
	ErrMissingUserID = errors.New("user id is required")
	// ErrRuleNotFound is returned when no rule has the given ID.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrUnknownActionType is returned at rule-save time for unregistered action types.
	ErrUnknownActionType = errors.New("unknown action type")
	// ErrInvalidRule wraps every rule validation failure so callers can tell
	// caller mistakes from engine failures.
	ErrInvalidRule = errors.New("invalid rule")
)

// Config carries the engine's tunable limits. Zero values use defaults.
type Config struct {
	MaxLifetime      time.Duration
	PollInterval     time.Duration
	ReapSchedule     string
	MaxHistoryEvents int
	MaxHistoryAge    time.Duration
}

// Engine is the automation engine facade: the single public entry point for
// inbound events, rule management, and execution queries. Constructed once
// at process start and passed by handle to trigger sources and the API.
type Engine struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	validate *validator.Validate

	rules     *RuleStore
	history   *history.Tracker
	evaluator *conditions.Evaluator
	registry  *registry.Registry
	profiles  profile.Store
	persist   persistence.Persistence
	bus       eventbus.EventPublisher
	scheduler *Scheduler
	manager   *Manager
	matcher   *Matcher
	reaper    *Reaper

	cancel context.CancelFunc
}

// New wires the engine from its collaborators. The registry is expected to
// have every supported action executor registered before rules are saved.
func New(
	cfg Config,
	reg *registry.Registry,
	profiles profile.Store,
	persist persistence.Persistence,
	bus eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Engine {
	tracker := history.NewTracker(cfg.MaxHistoryEvents, cfg.MaxHistoryAge, logger)
	evaluator := conditions.NewEvaluator(profiles, tracker, logger)
	rules := NewRuleStore(logger)
	scheduler := NewScheduler(logger, cfg.PollInterval)
	manager := NewManager(rules, reg, profiles, evaluator, scheduler, persist, bus, logger, cfg.MaxLifetime)
	scheduler.Bind(manager.Dispatch)
	matcher := NewMatcher(rules, tracker, evaluator, manager, logger)
	reaper := NewReaper(manager, tracker, logger, cfg.ReapSchedule)

	return &Engine{
		logger:    logger.With("module", "engine"),
		tracer:    tracer,
		validate:  validator.New(),
		rules:     rules,
		history:   tracker,
		evaluator: evaluator,
		registry:  reg,
		profiles:  profiles,
		persist:   persist,
		bus:       bus,
		scheduler: scheduler,
		manager:   manager,
		matcher:   matcher,
		reaper:    reaper,
	}
}

// BindRegistry wires the action executor registry. Kept separate from the
// constructor because executors that call back into the engine (such as
// schedule_followup) need the engine handle before they can be built.
func (e *Engine) BindRegistry(reg *registry.Registry) {
	e.registry = reg
	e.manager.registry = reg
}

// Evaluator exposes the condition evaluator, shared with the condition_check
// executor so embedded conditions behave exactly like trigger conditions.
func (e *Engine) Evaluator() *conditions.Evaluator {
	return e.evaluator
}

// Start loads persisted rules, then launches the dispatcher loop and the
// cleanup reaper.
func (e *Engine) Start(ctx context.Context) error {
	err := e.loadRules(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel

	go e.scheduler.Start(runCtx)

	err = e.reaper.Start(runCtx)
	if err != nil {
		cancel()

		return err
	}

	e.logger.InfoContext(ctx, "Engine started", "rules", len(e.rules.List(false, nil)))

	return nil
}

// Stop halts the dispatcher loop and the reaper.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}

	e.reaper.Stop()
	e.logger.Info("Engine stopped")
}

func (e *Engine) loadRules(ctx context.Context) error {
	if e.persist == nil {
		return nil
	}

	rules, err := e.persist.Rules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	for _, rule := range rules {
		err := e.rules.Upsert(rule)
		if err != nil {
			// A rule that no longer parses must not block startup.
			e.logger.ErrorContext(ctx, "Skipping unloadable rule",
				"rule_id", rule.ID,
				"error", err)
		}
	}

	return nil
}

// TriggerEvent is the inbound trigger surface: it feeds one external
// business event into the engine and returns the IDs of the executions the
// event started.
func (e *Engine) TriggerEvent(ctx context.Context, eventType models.EventType, userID string, eventData map[string]any) ([]string, error) {
	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "engine.trigger_event",
			attribute.String(otelhelper.EventTypeKey, string(eventType)),
			attribute.String(otelhelper.UserIDKey, userID))
		defer span.End()
	}

	if !eventType.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	if userID == "" {
		return nil, ErrMissingUserID
	}

	started := e.matcher.OnEvent(ctx, eventType, userID, eventData)

	e.publish(ctx, events.EventReceived{
		BaseEvent: events.NewBaseEvent(events.EventReceivedEvent, ""),
		UserID:    userID,
		EventName: string(eventType),
		EventData: eventData,
		Matched:   len(started),
	})

	e.logger.DebugContext(ctx, "Event processed",
		"event_type", eventType,
		"user_id", userID,
		"executions_started", len(started))

	return started, nil
}

// SaveRule validates and stores a rule. Malformed rules (unknown event or
// action types, invalid parameters, unparseable conditions) are rejected
// here, never at dispatch time. A new rule gets a generated ID.
func (e *Engine) SaveRule(ctx context.Context, rule *models.AutomationRule) error {
	err := e.validateRule(rule)
	if err != nil {
		return err
	}

	isNew := rule.ID == ""
	if isNew {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate rule ID: %w", err)
		}

		rule.ID = id.String()
	} else {
		_, exists := e.rules.Get(rule.ID)
		isNew = !exists
	}

	if e.persist != nil {
		err = e.persist.SaveRule(ctx, rule)
		if err != nil {
			return fmt.Errorf("failed to persist rule: %w", err)
		}
	}

	err = e.rules.Upsert(rule)
	if err != nil {
		return err
	}

	if isNew {
		e.publish(ctx, events.RuleCreated{
			BaseEvent: events.NewBaseEvent(events.RuleCreatedEvent, rule.ID),
			RuleName:  rule.Name,
		})
	} else {
		e.publish(ctx, events.RuleUpdated{
			BaseEvent: events.NewBaseEvent(events.RuleUpdatedEvent, rule.ID),
			RuleName:  rule.Name,
			IsActive:  rule.IsActive,
		})
	}

	e.logger.InfoContext(ctx, "Rule saved", "rule_id", rule.ID, "name", rule.Name, "is_active", rule.IsActive)

	return nil
}

// GetRule returns a rule by ID.
func (e *Engine) GetRule(_ context.Context, id string) (*models.AutomationRule, error) {
	rule, ok := e.rules.Get(id)
	if !ok {
		return nil, ErrRuleNotFound
	}

	return rule, nil
}

// ListRules returns rules, optionally filtered to active ones and by tags.
func (e *Engine) ListRules(_ context.Context, activeOnly bool, tags []string) []*models.AutomationRule {
	return e.rules.List(activeOnly, tags)
}

// DeleteRule cancels the rule's live executions, then removes the rule.
func (e *Engine) DeleteRule(ctx context.Context, id string) error {
	_, ok := e.rules.Get(id)
	if !ok {
		return ErrRuleNotFound
	}

	cancelled := e.manager.CancelExecutionsForRule(ctx, id)
	e.rules.Delete(id)

	if e.persist != nil {
		err := e.persist.DeleteRule(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to delete persisted rule: %w", err)
		}
	}

	e.publish(ctx, events.RuleDeleted{
		BaseEvent:           events.NewBaseEvent(events.RuleDeletedEvent, id),
		CancelledExecutions: cancelled,
	})

	e.logger.InfoContext(ctx, "Rule deleted", "rule_id", id, "cancelled_executions", cancelled)

	return nil
}

// GetExecution returns an execution by ID: live table first, then the audit
// store for already reaped executions.
func (e *Engine) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	execution, ok := e.manager.GetExecution(id)
	if ok {
		return execution, nil
	}

	if e.persist != nil {
		stored, err := e.persist.ExecutionByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load execution: %w", err)
		}

		if stored != nil {
			return stored, nil
		}
	}

	return nil, ErrExecutionNotFound
}

// UserExecutions returns a user's executions, newest first. Live executions
// shadow their persisted snapshots.
func (e *Engine) UserExecutions(ctx context.Context, userID string, limit int) ([]*models.Execution, error) {
	live := e.manager.ExecutionsForUser(userID)

	if e.persist == nil {
		if limit > 0 && len(live) > limit {
			live = live[:limit]
		}

		return live, nil
	}

	stored, err := e.persist.ExecutionsByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load executions: %w", err)
	}

	byID := make(map[string]*models.Execution, len(live))
	for _, execution := range live {
		byID[execution.ID] = execution
	}

	out := make([]*models.Execution, 0, len(stored))

	for _, execution := range stored {
		if fresh, ok := byID[execution.ID]; ok {
			out = append(out, fresh)

			continue
		}

		out = append(out, execution)
	}

	return out, nil
}

// CancelExecution cancels a live execution.
func (e *Engine) CancelExecution(ctx context.Context, id, reason string) error {
	return e.manager.CancelExecution(ctx, id, reason)
}

// StartFollowup starts a brand-new execution of a rule after the given
// delay. Implements the followup collaborator used by the schedule_followup
// action. Follow-ups are rule-author-initiated continuations: they bypass
// cooldown and max-trigger accounting and record no trigger event.
func (e *Engine) StartFollowup(ctx context.Context, ruleID, userID string, triggerData map[string]any, delay time.Duration) (string, error) {
	rule, ok := e.rules.Get(ruleID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
	}

	execution, err := e.manager.StartExecution(ctx, rule, userID, triggerData, delay)
	if err != nil {
		return "", err
	}

	return execution.ID, nil
}

// History exposes the event history tracker, used by trigger sources that
// want to inspect recorded events.
func (e *Engine) History() *history.Tracker {
	return e.history
}

// RunCleanupOnce triggers one reaper tick immediately. Used by tests and
// admin tooling.
func (e *Engine) RunCleanupOnce(ctx context.Context) {
	e.reaper.RunOnce(ctx)
}

func (e *Engine) validateRule(rule *models.AutomationRule) error {
	err := e.validate.Struct(rule)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}

	if !rule.Trigger.EventType.IsValid() {
		return fmt.Errorf("%w: %w: %s", ErrInvalidRule, ErrUnknownEventType, rule.Trigger.EventType)
	}

	if _, err := conditions.Parse(rule.Trigger.Conditions); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}

	for i, action := range rule.Actions {
		if !action.Type.IsValid() || !e.registry.IsRegistered(action.Type) {
			return fmt.Errorf("%w: %w: action %d has type %q", ErrInvalidRule, ErrUnknownActionType, i, action.Type)
		}

		err := e.registry.ValidateParameters(action.Type, action.Parameters)
		if err != nil {
			return fmt.Errorf("%w: action %d: %w", ErrInvalidRule, i, err)
		}

		if len(action.Condition) > 0 {
			_, err := conditions.Parse(action.Condition)
			if err != nil {
				return fmt.Errorf("%w: action %d has an invalid guard: %w", ErrInvalidRule, i, err)
			}
		}
	}

	return nil
}

func (e *Engine) publish(ctx context.Context, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	err := e.bus.Publish(ctx, string(event.GetType()), event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"error", err)
	}
}
