package sendemail

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	sentTo  string
	subject string
	err     error
}

func (m *fakeMailer) SendEmail(_ context.Context, to, subject, _ string) error {
	m.sentTo = to
	m.subject = subject

	return m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestNewAction_RequiresSubject(t *testing.T) {
	_, err := NewAction(map[string]any{"body": "hi"}, &fakeMailer{})
	require.ErrorIs(t, err, ErrMissingSubject)
}

func TestAction_Execute_SendsToProfileEmail(t *testing.T) {
	mailer := &fakeMailer{}
	action, err := NewAction(map[string]any{"subject": "Welcome!", "body": "Hello"}, mailer)
	require.NoError(t, err)

	actionCtx := protocol.ActionContext{
		Execution: &models.Execution{ID: "exec-1", UserID: "u1"},
		Profile:   map[string]any{"email": "u1@example.com"},
	}

	err = action.Execute(context.Background(), actionCtx, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", mailer.sentTo)
	assert.Equal(t, "Welcome!", mailer.subject)
}

func TestAction_Execute_FailsWithoutRecipient(t *testing.T) {
	action, err := NewAction(map[string]any{"subject": "Welcome!"}, &fakeMailer{})
	require.NoError(t, err)

	actionCtx := protocol.ActionContext{
		Execution: &models.Execution{ID: "exec-1", UserID: "u1"},
		Profile:   map[string]any{},
	}

	err = action.Execute(context.Background(), actionCtx, testLogger())
	require.ErrorIs(t, err, ErrNoRecipient)
}

func TestAction_Execute_PropagatesMailerFailure(t *testing.T) {
	mailer := &fakeMailer{err: assert.AnError}
	action, err := NewAction(map[string]any{"subject": "Welcome!"}, mailer)
	require.NoError(t, err)

	actionCtx := protocol.ActionContext{
		Execution: &models.Execution{ID: "exec-1", UserID: "u1"},
		Profile:   map[string]any{"email": "u1@example.com"},
	}

	err = action.Execute(context.Background(), actionCtx, testLogger())
	require.Error(t, err)
}
