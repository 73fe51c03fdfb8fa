// Package engine implements the rule-driven automation engine: trigger
// matching, execution lifecycle management, delayed action dispatch, and
// periodic cleanup.
package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/driphq/drip/pkg/conditions"
	"github.com/driphq/drip/pkg/models"
)

// storedRule pairs a rule with its trigger conditions parsed once at load
// time, so matching never re-parses condition keys.
type storedRule struct {
	rule  *models.AutomationRule
	conds []conditions.Condition
}

// RuleStore is the in-memory index of automation rules, keyed by ID and by
// trigger event type. Read-mostly; a single RWMutex guards both indexes.
//
// Rules are treated as immutable once stored. Evaluation order per event type
// is insertion order, which keeps test fixtures reproducible.
type RuleStore struct {
	mu      sync.RWMutex
	rules   map[string]*storedRule
	byEvent map[models.EventType][]string
	logger  *slog.Logger
}

// NewRuleStore creates an empty rule store.
func NewRuleStore(logger *slog.Logger) *RuleStore {
	return &RuleStore{
		rules:   make(map[string]*storedRule),
		byEvent: make(map[models.EventType][]string),
		logger:  logger.With("module", "rule_store"),
	}
}

// Upsert adds or replaces a rule. Trigger conditions are parsed here so a
// malformed condition map is rejected before the rule can ever match.
func (rs *RuleStore) Upsert(rule *models.AutomationRule) error {
	conds, err := conditions.Parse(rule.Trigger.Conditions)
	if err != nil {
		return fmt.Errorf("invalid trigger conditions for rule %s: %w", rule.ID, err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if existing, ok := rs.rules[rule.ID]; ok && existing.rule.Trigger.EventType != rule.Trigger.EventType {
		rs.removeFromEventIndex(existing.rule.Trigger.EventType, rule.ID)
	}

	if _, ok := rs.rules[rule.ID]; !ok || !slices.Contains(rs.byEvent[rule.Trigger.EventType], rule.ID) {
		rs.byEvent[rule.Trigger.EventType] = append(rs.byEvent[rule.Trigger.EventType], rule.ID)
	}

	rs.rules[rule.ID] = &storedRule{rule: rule, conds: conds}

	return nil
}

// Get returns a rule by ID.
func (rs *RuleStore) Get(id string) (*models.AutomationRule, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	stored, ok := rs.rules[id]
	if !ok {
		return nil, false
	}

	return stored.rule, true
}

// List returns all rules, optionally filtered to active rules and/or to
// rules carrying any of the given tags.
func (rs *RuleStore) List(activeOnly bool, tags []string) []*models.AutomationRule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	out := make([]*models.AutomationRule, 0, len(rs.rules))

	for _, stored := range rs.rules {
		if activeOnly && !stored.rule.IsActive {
			continue
		}

		if len(tags) > 0 && !hasAnyTag(stored.rule.Tags, tags) {
			continue
		}

		out = append(out, stored.rule)
	}

	slices.SortFunc(out, func(a, b *models.AutomationRule) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return out
}

// Delete removes a rule from the store and reports whether it existed.
// Cancelling live executions of the rule is the engine's responsibility,
// before calling this.
func (rs *RuleStore) Delete(id string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	stored, ok := rs.rules[id]
	if !ok {
		return false
	}

	rs.removeFromEventIndex(stored.rule.Trigger.EventType, id)
	delete(rs.rules, id)

	return true
}

// matchCandidates returns the active rules triggered by the given event
// type, in insertion order, with their pre-parsed conditions.
func (rs *RuleStore) matchCandidates(eventType models.EventType) []*storedRule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	ids := rs.byEvent[eventType]
	out := make([]*storedRule, 0, len(ids))

	for _, id := range ids {
		stored, ok := rs.rules[id]
		if !ok || !stored.rule.IsActive {
			continue
		}

		out = append(out, stored)
	}

	return out
}

func (rs *RuleStore) removeFromEventIndex(eventType models.EventType, id string) {
	ids := rs.byEvent[eventType]

	idx := slices.Index(ids, id)
	if idx >= 0 {
		rs.byEvent[eventType] = slices.Delete(ids, idx, idx+1)
	}

	if len(rs.byEvent[eventType]) == 0 {
		delete(rs.byEvent, eventType)
	}
}

func hasAnyTag(ruleTags, wanted []string) bool {
	for _, tag := range wanted {
		if slices.Contains(ruleTags, tag) {
			return true
		}
	}

	return false
}
