// Package conditioncheck provides the condition_check action executor, which
// lets an execution give up partway through when its embedded conditions no
// longer hold.
package conditioncheck

import (
	"context"
	"errors"
	"log/slog"

	"github.com/driphq/drip/pkg/conditions"
	"github.com/driphq/drip/pkg/protocol"
)

// ErrConditionsNotMet is the failure result when the embedded conditions do
// not hold at execution time.
var ErrConditionsNotMet = errors.New("condition_check conditions not met")

type Action struct {
	parsed    []conditions.Condition
	evaluator *conditions.Evaluator
}

// NewAction parses the embedded condition map once, at rule-load time.
func NewAction(params map[string]any, evaluator *conditions.Evaluator) (*Action, error) {
	raw, _ := params["conditions"].(map[string]any)

	parsed, err := conditions.Parse(raw)
	if err != nil {
		return nil, err
	}

	return &Action{parsed: parsed, evaluator: evaluator}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) error {
	execution := actionCtx.Execution

	ok := a.evaluator.EvaluateAll(ctx, a.parsed, execution.UserID, execution.TriggerData)
	if !ok {
		logger.InfoContext(ctx, "Condition check failed",
			"action_type", "condition_check",
			"execution_id", execution.ID)

		return ErrConditionsNotMet
	}

	return nil
}
