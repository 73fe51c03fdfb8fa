// Package followup provides the schedule_followup action executor. It creates
// a brand-new, independent execution at a future time instead of keeping the
// current execution's step pinned to an in-memory timer for days.
package followup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/protocol"
)

// ErrMissingDelay is returned when the action parameters omit delay_minutes.
var ErrMissingDelay = errors.New("schedule_followup requires a positive 'delay_minutes' parameter")

type Action struct {
	// RuleID of the follow-up; empty means the current execution's rule.
	RuleID       string
	Delay        time.Duration
	ExtraTrigger map[string]any

	starter protocol.FollowupStarter
}

func NewAction(params map[string]any, starter protocol.FollowupStarter) (*Action, error) {
	delayMinutes, ok := floatParam(params["delay_minutes"])
	if !ok || delayMinutes <= 0 {
		return nil, ErrMissingDelay
	}

	ruleID, _ := params["rule_id"].(string)
	extra, _ := params["trigger_data"].(map[string]any)

	return &Action{
		RuleID:       ruleID,
		Delay:        time.Duration(delayMinutes) * time.Minute,
		ExtraTrigger: extra,
		starter:      starter,
	}, nil
}

// floatParam accepts the numeric types a rule can carry: float64 from JSON
// decoding, int or int64 when rules are built in Go.
func floatParam(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) error {
	execution := actionCtx.Execution

	ruleID := a.RuleID
	if ruleID == "" {
		ruleID = execution.RuleID
	}

	triggerData := make(map[string]any, len(execution.TriggerData)+len(a.ExtraTrigger)+1)
	for key, value := range execution.TriggerData {
		triggerData[key] = value
	}

	for key, value := range a.ExtraTrigger {
		triggerData[key] = value
	}

	triggerData["followup_of"] = execution.ID

	followupID, err := a.starter.StartFollowup(ctx, ruleID, execution.UserID, triggerData, a.Delay)
	if err != nil {
		return fmt.Errorf("failed to schedule followup for rule %s: %w", ruleID, err)
	}

	logger.InfoContext(ctx, "Followup execution scheduled",
		"action_type", "schedule_followup",
		"rule_id", ruleID,
		"followup_execution_id", followupID,
		"delay", a.Delay)

	return nil
}

type Factory struct {
	starter protocol.FollowupStarter
}

func NewFactory(starter protocol.FollowupStarter) *Factory {
	return &Factory{starter: starter}
}

func (*Factory) ID() models.ActionType {
	return models.ActionScheduleFollowup
}

func (f *Factory) Create(params map[string]any) (protocol.ActionExecutor, error) {
	return NewAction(params, f.starter)
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"delay_minutes": map[string]any{"type": "number", "minimum": 1},
			"rule_id":       map[string]any{"type": "string"},
			"trigger_data":  map[string]any{"type": "object"},
		},
		"required": []any{"delay_minutes"},
	}
}
