package conditioncheck

import (
	"github.com/driphq/drip/pkg/conditions"
	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/protocol"
)

type Factory struct {
	evaluator *conditions.Evaluator
}

func NewFactory(evaluator *conditions.Evaluator) *Factory {
	return &Factory{evaluator: evaluator}
}

func (*Factory) ID() models.ActionType {
	return models.ActionConditionCheck
}

func (f *Factory) Create(params map[string]any) (protocol.ActionExecutor, error) {
	return NewAction(params, f.evaluator)
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"conditions": map[string]any{"type": "object"},
		},
		"required": []any{"conditions"},
	}
}
