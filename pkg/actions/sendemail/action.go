// Package sendemail provides the send_email action executor.
package sendemail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/driphq/drip/pkg/protocol"
)

var (
	// ErrMissingSubject is returned when the action parameters omit a subject.
	ErrMissingSubject = errors.New("send_email requires a 'subject' parameter")
	// ErrNoRecipient is returned when the user profile has no email address.
	ErrNoRecipient = errors.New("user profile has no email address")
)

// Action resolves the recipient from the user profile and hands the message
// to the mailer collaborator.
type Action struct {
	Subject string
	Body    string

	mailer protocol.Mailer
}

// NewAction creates a send_email executor from action parameters.
func NewAction(params map[string]any, mailer protocol.Mailer) (*Action, error) {
	subject, _ := params["subject"].(string)
	if subject == "" {
		return nil, ErrMissingSubject
	}

	body, _ := params["body"].(string)

	return &Action{
		Subject: subject,
		Body:    body,
		mailer:  mailer,
	}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext, logger *slog.Logger) error {
	logger = logger.With("action_type", "send_email")

	recipient, _ := actionCtx.Profile["email"].(string)
	if recipient == "" {
		return ErrNoRecipient
	}

	err := a.mailer.SendEmail(ctx, recipient, a.Subject, a.Body)
	if err != nil {
		return fmt.Errorf("mailer failed for %s: %w", recipient, err)
	}

	logger.InfoContext(ctx, "Email handed off to mailer", "to", recipient, "subject", a.Subject)

	return nil
}
