// Package wait provides the wait action executor. The delay itself is applied
// by the scheduler via the action's delay_minutes; executing the step is
// always a success.
package wait

import (
	"context"
	"log/slog"

	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/protocol"
)

type Action struct{}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) error {
	logger.DebugContext(ctx, "Wait step elapsed", "action_type", "wait", "execution_id", actionCtx.Execution.ID)

	return nil
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() models.ActionType {
	return models.ActionWait
}

func (*Factory) Create(_ map[string]any) (protocol.ActionExecutor, error) {
	return &Action{}, nil
}

func (*Factory) Schema() map[string]any {
	return nil
}
