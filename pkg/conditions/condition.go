// Package conditions provides parsing and evaluation of rule trigger conditions.
package conditions

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/driphq/drip/pkg/models"
)

// Operator is a comparison operator usable in event condition expressions.
type Operator string

const (
	OpEquals       Operator = "=="
	OpNotEquals    Operator = "!="
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpIn           Operator = "in"
	OpNotIn        Operator = "not_in"
)

// HistoryMode selects which historical check a history condition performs.
type HistoryMode string

const (
	// HistoryEventCount checks that a given event type occurred at least
	// min_count times within the last N days.
	HistoryEventCount HistoryMode = "event_count"
	// HistoryLastEvent checks that a given event type occurred within the
	// last N hours.
	HistoryLastEvent HistoryMode = "last_event"
)

var (
	// ErrUnknownConditionKey is returned when a condition key does not belong
	// to the event, user, or history namespaces.
	ErrUnknownConditionKey = errors.New("unknown condition key")
	// ErrInvalidOperator is returned when an operator expression uses an
	// unsupported operator.
	ErrInvalidOperator = errors.New("invalid condition operator")
	// ErrInvalidHistoryCondition is returned when a history condition is
	// missing required fields.
	ErrInvalidHistoryCondition = errors.New("invalid history condition")
)

// Condition is one parsed predicate of a rule's condition set.
type Condition interface {
	Key() string
}

// EventCondition compares a field of the current event payload against an
// expected value using an operator.
type EventCondition struct {
	Field    string
	Op       Operator
	Expected any
}

func (c EventCondition) Key() string { return "event." + c.Field }

// UserCondition compares a user profile attribute for equality.
type UserCondition struct {
	Field    string
	Expected any
}

func (c UserCondition) Key() string { return "user." + c.Field }

// HistoryCondition checks the user's past event history.
type HistoryCondition struct {
	Mode      HistoryMode
	EventType models.EventType
	// WindowDays bounds event_count lookback; WindowHours bounds last_event.
	WindowDays  int
	WindowHours int
	MinCount    int
}

func (c HistoryCondition) Key() string { return "history." + string(c.Mode) }

var validOperators = []Operator{
	OpEquals, OpNotEquals, OpGreaterEqual, OpLessEqual,
	OpGreater, OpLess, OpIn, OpNotIn,
}

// Parse converts a raw condition map (as stored on a rule) into the closed set
// of tagged condition variants. Keys are processed in sorted order so parsed
// output is deterministic. Unknown namespaces and malformed expressions are
// rejected here, at rule-save time, never at evaluation time.
func Parse(raw map[string]any) ([]Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	parsed := make([]Condition, 0, len(raw))

	for _, key := range keys {
		condition, err := parseOne(key, raw[key])
		if err != nil {
			return nil, err
		}

		parsed = append(parsed, condition)
	}

	return parsed, nil
}

func parseOne(key string, expected any) (Condition, error) {
	switch {
	case strings.HasPrefix(key, "event."):
		return parseEventCondition(strings.TrimPrefix(key, "event."), expected)
	case strings.HasPrefix(key, "user."):
		return UserCondition{Field: strings.TrimPrefix(key, "user."), Expected: expected}, nil
	case strings.HasPrefix(key, "history."):
		return parseHistoryCondition(strings.TrimPrefix(key, "history."), expected)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownConditionKey, key)
	}
}

func parseEventCondition(field string, expected any) (Condition, error) {
	operatorExpr, ok := expected.(map[string]any)
	if !ok {
		// A literal expected value means equality.
		return EventCondition{Field: field, Op: OpEquals, Expected: expected}, nil
	}

	if len(operatorExpr) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one operator for event.%s", ErrInvalidOperator, field)
	}

	for op, value := range operatorExpr {
		if !slices.Contains(validOperators, Operator(op)) {
			return nil, fmt.Errorf("%w: %q on event.%s", ErrInvalidOperator, op, field)
		}

		return EventCondition{Field: field, Op: Operator(op), Expected: value}, nil
	}

	return nil, fmt.Errorf("%w: empty operator expression for event.%s", ErrInvalidOperator, field)
}

func parseHistoryCondition(mode string, expected any) (Condition, error) {
	spec, ok := expected.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: history.%s expects an object", ErrInvalidHistoryCondition, mode)
	}

	eventType, _ := spec["event_type"].(string)
	if eventType == "" {
		return nil, fmt.Errorf("%w: history.%s requires event_type", ErrInvalidHistoryCondition, mode)
	}

	switch HistoryMode(mode) {
	case HistoryEventCount:
		return HistoryCondition{
			Mode:       HistoryEventCount,
			EventType:  models.EventType(eventType),
			WindowDays: intValue(spec["days"], 30),
			MinCount:   intValue(spec["min_count"], 1),
		}, nil
	case HistoryLastEvent:
		return HistoryCondition{
			Mode:        HistoryLastEvent,
			EventType:   models.EventType(eventType),
			WindowHours: intValue(spec["hours"], 24),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported history mode %q", ErrInvalidHistoryCondition, mode)
	}
}

func intValue(value any, fallback int) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
