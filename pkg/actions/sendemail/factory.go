package sendemail

import (
	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/protocol"
)

type Factory struct {
	mailer protocol.Mailer
}

func NewFactory(mailer protocol.Mailer) *Factory {
	return &Factory{mailer: mailer}
}

func (*Factory) ID() models.ActionType {
	return models.ActionSendEmail
}

func (f *Factory) Create(params map[string]any) (protocol.ActionExecutor, error) {
	return NewAction(params, f.mailer)
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subject": map[string]any{"type": "string", "minLength": 1},
			"body":    map[string]any{"type": "string"},
		},
		"required": []any{"subject"},
	}
}
