// Package notification provides the send_notification action executor.
// Failures here are non-fatal by convention; rule authors typically mark this
// step optional, though the engine does not enforce that.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/protocol"
)

// ErrMissingMessage is returned when the action parameters omit the message.
var ErrMissingMessage = errors.New("send_notification requires a 'message' parameter")

type Action struct {
	Channel string
	Message string

	notifier protocol.Notifier
}

func NewAction(params map[string]any, notifier protocol.Notifier) (*Action, error) {
	message, _ := params["message"].(string)
	if message == "" {
		return nil, ErrMissingMessage
	}

	channel, _ := params["channel"].(string)
	if channel == "" {
		channel = "in_app"
	}

	return &Action{Channel: channel, Message: message, notifier: notifier}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) error {
	userID := actionCtx.Execution.UserID

	err := a.notifier.SendNotification(ctx, userID, a.Channel, a.Message)
	if err != nil {
		return fmt.Errorf("notifier failed for %s: %w", userID, err)
	}

	logger.InfoContext(ctx, "Notification sent",
		"action_type", "send_notification",
		"user_id", userID,
		"channel", a.Channel)

	return nil
}

type Factory struct {
	notifier protocol.Notifier
}

func NewFactory(notifier protocol.Notifier) *Factory {
	return &Factory{notifier: notifier}
}

func (*Factory) ID() models.ActionType {
	return models.ActionSendNotification
}

func (f *Factory) Create(params map[string]any) (protocol.ActionExecutor, error) {
	return NewAction(params, f.notifier)
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string", "minLength": 1},
			"channel": map[string]any{"type": "string"},
		},
		"required": []any{"message"},
	}
}
