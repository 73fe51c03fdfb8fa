package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/driphq/drip/pkg/conditions"
	"github.com/driphq/drip/pkg/history"
	"github.com/driphq/drip/pkg/models"
)

// firedKey is the synthetic history event recorded each time a rule fires
// for a user. Cooldown and max-trigger accounting read this key, so rule
// firings and ordinary user events share one retention policy.
func firedKey(ruleID string) models.EventType {
	return models.EventType("rule_fired:" + ruleID)
}

// Matcher decides which rules fire for an incoming event and asks the
// execution manager to start an execution for each match.
type Matcher struct {
	rules     *RuleStore
	history   *history.Tracker
	evaluator *conditions.Evaluator
	manager   *Manager
	logger    *slog.Logger

	now func() time.Time
}

// NewMatcher creates a trigger matcher.
func NewMatcher(
	rules *RuleStore,
	tracker *history.Tracker,
	evaluator *conditions.Evaluator,
	manager *Manager,
	logger *slog.Logger,
) *Matcher {
	return &Matcher{
		rules:     rules,
		history:   tracker,
		evaluator: evaluator,
		manager:   manager,
		logger:    logger.With("module", "trigger_matcher"),
		now:       time.Now,
	}
}

// OnEvent records the event into history, evaluates every active rule for
// the event type in insertion order, and starts an execution per match.
// Returns the IDs of the executions it started.
//
// The event is recorded before matching so conditions referencing this event
// see consistent history.
func (tm *Matcher) OnEvent(ctx context.Context, eventType models.EventType, userID string, eventData map[string]any) []string {
	tm.history.RecordEvent(userID, eventType, eventData)

	started := make([]string, 0)

	for _, candidate := range tm.rules.matchCandidates(eventType) {
		rule := candidate.rule

		logger := tm.logger.With("rule_id", rule.ID, "user_id", userID, "event_type", eventType)

		if !tm.cooldownClear(rule, userID) {
			logger.DebugContext(ctx, "Rule skipped, cooldown active")

			continue
		}

		if !tm.underTriggerCap(rule, userID) {
			logger.DebugContext(ctx, "Rule skipped, max trigger cap reached")

			continue
		}

		if !tm.evaluator.EvaluateAll(ctx, candidate.conds, userID, eventData) {
			logger.DebugContext(ctx, "Rule skipped, conditions not met")

			continue
		}

		// Record the firing before starting the execution so a concurrent
		// event for the same user observes the cooldown immediately.
		tm.history.RecordEvent(userID, firedKey(rule.ID), nil)

		execution, err := tm.manager.StartExecution(ctx, rule, userID, eventData, minutes(rule.Trigger.DelayMinutes))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to start execution", "error", err)

			continue
		}

		started = append(started, execution.ID)
	}

	return started
}

func (tm *Matcher) cooldownClear(rule *models.AutomationRule, userID string) bool {
	if rule.Trigger.CooldownHours <= 0 {
		return true
	}

	last, ok := tm.history.LastEventTime(userID, firedKey(rule.ID))
	if !ok {
		return true
	}

	cooldown := time.Duration(rule.Trigger.CooldownHours) * time.Hour

	return tm.now().Sub(last) >= cooldown
}

func (tm *Matcher) underTriggerCap(rule *models.AutomationRule, userID string) bool {
	if rule.Trigger.MaxTriggers <= 0 {
		return true
	}

	fired := tm.history.CountEvents(userID, firedKey(rule.ID), 0)

	return fired < rule.Trigger.MaxTriggers
}
