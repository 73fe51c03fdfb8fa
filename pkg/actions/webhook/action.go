// Package webhook provides the trigger_webhook action executor.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/protocol"
)

const defaultTimeoutSeconds = 10

var (
	// ErrMissingURL is returned when the action parameters omit the URL.
	ErrMissingURL = errors.New("trigger_webhook requires a 'url' parameter")
	// ErrServerError is returned when the remote responds with a 5xx status.
	ErrServerError = errors.New("webhook endpoint returned a server error")
)

// Action issues an outbound HTTP call with a bounded timeout. The call counts
// as a success unless the remote responds with a server-class (5xx) error or
// the request itself fails.
type Action struct {
	URL     string
	Method  string
	Headers map[string]string
	Timeout time.Duration

	client *http.Client
}

func NewAction(params map[string]any) (*Action, error) {
	url, _ := params["url"].(string)
	if url == "" {
		return nil, ErrMissingURL
	}

	method, _ := params["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	headers := make(map[string]string)

	if headersParam, ok := params["headers"].(map[string]any); ok {
		for key, value := range headersParam {
			if str, ok := value.(string); ok {
				headers[key] = str
			}
		}
	}

	timeout := defaultTimeoutSeconds * time.Second
	if seconds, ok := floatParam(params["timeout_seconds"]); ok && seconds > 0 {
		timeout = time.Duration(seconds * float64(time.Second))
	}

	return &Action{
		URL:     url,
		Method:  strings.ToUpper(method),
		Headers: headers,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
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
	logger = logger.With("action_type", "trigger_webhook", "url", a.URL)

	execution := actionCtx.Execution

	payload := map[string]any{
		"execution_id": execution.ID,
		"rule_id":      execution.RuleID,
		"user_id":      execution.UserID,
		"trigger_data": execution.TriggerData,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, a.Method, a.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range a.Headers {
		req.Header.Set(key, value)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	}

	logger.InfoContext(ctx, "Webhook delivered", "status_code", resp.StatusCode)

	return nil
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() models.ActionType {
	return models.ActionTriggerWebhook
}

func (*Factory) Create(params map[string]any) (protocol.ActionExecutor, error) {
	return NewAction(params)
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":             map[string]any{"type": "string", "minLength": 1},
			"method":          map[string]any{"type": "string"},
			"headers":         map[string]any{"type": "object"},
			"timeout_seconds": map[string]any{"type": "number", "minimum": 1},
		},
		"required": []any{"url"},
	}
}
