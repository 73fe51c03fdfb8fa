package conditions

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/driphq/drip/pkg/models"
)

// ProfileReader supplies user attributes for user.* conditions.
type ProfileReader interface {
	GetUserData(ctx context.Context, userID string) (map[string]any, error)
}

// HistoryReader supplies per-user event history for history.* conditions.
type HistoryReader interface {
	CountEvents(userID string, eventType models.EventType, since time.Duration) int
	LastEventTime(userID string, eventType models.EventType) (time.Time, bool)
}

// Evaluator evaluates parsed conditions against an event payload, the user's
// profile, and the user's event history. Missing or unparseable data always
// evaluates to false, never to an error: a broken condition disables a rule
// path instead of crashing the engine.
type Evaluator struct {
	profiles ProfileReader
	history  HistoryReader
	logger   *slog.Logger
}

// NewEvaluator creates a condition evaluator.
func NewEvaluator(profiles ProfileReader, history HistoryReader, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		profiles: profiles,
		history:  history,
		logger:   logger.With("module", "condition_evaluator"),
	}
}

// EvaluateAll reports whether every condition holds (logical AND). Evaluation
// short-circuits on the first false condition.
func (e *Evaluator) EvaluateAll(
	ctx context.Context,
	conds []Condition,
	userID string,
	eventData map[string]any,
) bool {
	for _, condition := range conds {
		if !e.Evaluate(ctx, condition, userID, eventData) {
			e.logger.DebugContext(ctx, "Condition evaluated to false",
				"condition", condition.Key(),
				"user_id", userID)

			return false
		}
	}

	return true
}

// Evaluate reports whether a single condition holds.
func (e *Evaluator) Evaluate(ctx context.Context, cond Condition, userID string, eventData map[string]any) bool {
	switch c := cond.(type) {
	case EventCondition:
		return e.evaluateEvent(c, eventData)
	case UserCondition:
		return e.evaluateUser(ctx, c, userID)
	case HistoryCondition:
		return e.evaluateHistory(c, userID)
	default:
		return false
	}
}

func (e *Evaluator) evaluateEvent(cond EventCondition, eventData map[string]any) bool {
	actual, found := lookupField(eventData, cond.Field)
	if !found {
		return false
	}

	return compare(cond.Op, actual, cond.Expected)
}

func (e *Evaluator) evaluateUser(ctx context.Context, cond UserCondition, userID string) bool {
	if e.profiles == nil {
		return false
	}

	userData, err := e.profiles.GetUserData(ctx, userID)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to load user data for condition",
			"user_id", userID, "error", err)

		return false
	}

	actual, found := lookupField(userData, cond.Field)
	if !found {
		return false
	}

	return compare(OpEquals, actual, cond.Expected)
}

func (e *Evaluator) evaluateHistory(cond HistoryCondition, userID string) bool {
	if e.history == nil {
		return false
	}

	switch cond.Mode {
	case HistoryEventCount:
		window := time.Duration(cond.WindowDays) * 24 * time.Hour
		count := e.history.CountEvents(userID, cond.EventType, window)

		return count >= cond.MinCount
	case HistoryLastEvent:
		last, found := e.history.LastEventTime(userID, cond.EventType)
		if !found {
			return false
		}

		return time.Since(last) <= time.Duration(cond.WindowHours)*time.Hour
	default:
		return false
	}
}

// lookupField resolves a dotted field path inside nested map payloads.
func lookupField(data map[string]any, field string) (any, bool) {
	if data == nil {
		return nil, false
	}

	parts := strings.Split(field, ".")
	current := any(data)

	for _, part := range parts {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = asMap[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func compare(op Operator, actual, expected any) bool {
	switch op {
	case OpEquals:
		return equals(actual, expected)
	case OpNotEquals:
		return !equals(actual, expected)
	case OpGreaterEqual, OpLessEqual, OpGreater, OpLess:
		left, leftOK := toFloat(actual)
		right, rightOK := toFloat(expected)

		if !leftOK || !rightOK {
			return false
		}

		switch op {
		case OpGreaterEqual:
			return left >= right
		case OpLessEqual:
			return left <= right
		case OpGreater:
			return left > right
		default:
			return left < right
		}
	case OpIn:
		return contains(expected, actual)
	case OpNotIn:
		list, ok := expected.([]any)
		if !ok {
			return false
		}

		return !containsList(list, actual)
	default:
		return false
	}
}

func equals(actual, expected any) bool {
	left, leftOK := toFloat(actual)
	right, rightOK := toFloat(expected)

	if leftOK && rightOK {
		return left == right
	}

	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
}

func contains(expected, actual any) bool {
	list, ok := expected.([]any)
	if !ok {
		return false
	}

	return containsList(list, actual)
}

func containsList(list []any, actual any) bool {
	for _, candidate := range list {
		if equals(actual, candidate) {
			return true
		}
	}

	return false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}
