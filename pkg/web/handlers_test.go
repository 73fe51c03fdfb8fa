package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/driphq/drip/pkg/actions/logevent"
	"github.com/driphq/drip/pkg/actions/sendemail"
	"github.com/driphq/drip/pkg/engine"
	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/profile"
	"github.com/driphq/drip/pkg/registry"
	"github.com/driphq/drip/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopMailer struct{}

func (noopMailer) SendEmail(_ context.Context, _, _, _ string) error { return nil }

type noopEventLogger struct{}

func (noopEventLogger) LogEvent(_ context.Context, _, _ string, _ map[string]any) error { return nil }

func setupTestApp(t *testing.T) (*fiber.App, *engine.Engine) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	reg := registry.NewRegistry(logger)
	reg.RegisterExecutor(sendemail.NewFactory(noopMailer{}))
	reg.RegisterExecutor(logevent.NewFactory(noopEventLogger{}))

	eng := engine.New(engine.Config{}, reg, profile.NewMemoryStore(), nil, nil, nil, logger)

	handlers := web.NewAPIHandlers(eng, nil, validator.New())
	app := fiber.New()
	handlers.RegisterRoutes(app)

	return app, eng
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	return resp, respBody
}

func validRuleRequest() web.CreateRuleRequest {
	return web.CreateRuleRequest{
		Name:        "Welcome email",
		Description: "Sends a welcome email on signup",
		Trigger:     models.TriggerCondition{EventType: models.EventUserSignup},
		Actions: []*models.AutomationAction{
			{
				Type:       models.ActionSendEmail,
				Parameters: map[string]any{"subject": "Welcome!"},
				IsRequired: true,
			},
		},
		IsActive: true,
		Tags:     []string{"onboarding"},
	}
}

func TestAPIHandlers_CreateRule(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "successful creation",
			requestBody:    validRuleRequest(),
			expectedStatus: http.StatusCreated,
		},
		{
			name: "validation error - missing name",
			requestBody: web.CreateRuleRequest{
				Trigger: models.TriggerCondition{EventType: models.EventUserSignup},
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - unknown event type",
			requestBody: func() web.CreateRuleRequest {
				req := validRuleRequest()
				req.Trigger.EventType = "solar_flare"

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - unknown action type",
			requestBody: func() web.CreateRuleRequest {
				req := validRuleRequest()
				req.Actions = []*models.AutomationAction{{Type: "launch_rocket"}}

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - bad action parameters",
			requestBody: func() web.CreateRuleRequest {
				req := validRuleRequest()
				req.Actions[0].Parameters = map[string]any{}

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - bad trigger conditions",
			requestBody: func() web.CreateRuleRequest {
				req := validRuleRequest()
				req.Trigger.Conditions = map[string]any{"weather.today": "sunny"}

				return req
			}(),
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := setupTestApp(t)

			resp, body := doJSON(t, app, http.MethodPost, "/rules", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var rule models.AutomationRule

				require.NoError(t, json.Unmarshal(body, &rule))
				assert.NotEmpty(t, rule.ID)
				assert.Equal(t, "Welcome email", rule.Name)
				assert.True(t, rule.IsActive)
			}
		})
	}
}

func TestAPIHandlers_GetRule(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/rules", validRuleRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.AutomationRule
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = doJSON(t, app, http.MethodGet, "/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.AutomationRule
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	resp, _ = doJSON(t, app, http.MethodGet, "/rules/missing-id", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_ListRules(t *testing.T) {
	app, _ := setupTestApp(t)

	active := validRuleRequest()

	inactive := validRuleRequest()
	inactive.Name = "Paused rule"
	inactive.IsActive = false
	inactive.Tags = []string{"retention"}

	for _, req := range []web.CreateRuleRequest{active, inactive} {
		resp, _ := doJSON(t, app, http.MethodPost, "/rules", req)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var listing struct {
		Rules []*models.AutomationRule `json:"rules"`
		Count int                      `json:"count"`
	}

	resp, body := doJSON(t, app, http.MethodGet, "/rules", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 2, listing.Count)

	resp, body = doJSON(t, app, http.MethodGet, "/rules?active=true", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 1, listing.Count)

	resp, body = doJSON(t, app, http.MethodGet, "/rules?tags=retention", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listing))
	require.Equal(t, 1, listing.Count)
	assert.Equal(t, "Paused rule", listing.Rules[0].Name)
}

func TestAPIHandlers_UpdateRule(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/rules", validRuleRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.AutomationRule
	require.NoError(t, json.Unmarshal(body, &created))

	newName := "Welcome email v2"
	isActive := false

	resp, body = doJSON(t, app, http.MethodPut, "/rules/"+created.ID, web.UpdateRuleRequest{
		Name:     &newName,
		IsActive: &isActive,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.AutomationRule
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, newName, updated.Name)
	assert.False(t, updated.IsActive)
	// Untouched fields survive a partial update.
	assert.Equal(t, created.Trigger.EventType, updated.Trigger.EventType)

	resp, _ = doJSON(t, app, http.MethodPut, "/rules/missing-id", web.UpdateRuleRequest{Name: &newName})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_DeleteRule(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/rules", validRuleRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.AutomationRule
	require.NoError(t, json.Unmarshal(body, &created))

	resp, _ = doJSON(t, app, http.MethodDelete, "/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_TriggerEvent(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/rules", validRuleRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/events", web.TriggerEventRequest{
		EventType: "user_signup",
		UserID:    "u1",
		Data:      map[string]any{"source": "landing_page"},
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result web.TriggerEventResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 1, result.Matched)
	require.Len(t, result.ExecutionIDs, 1)

	// The started execution is queryable right away.
	resp, body = doJSON(t, app, http.MethodGet, "/executions/"+result.ExecutionIDs[0], nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var execution models.Execution
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, "u1", execution.UserID)
	assert.Equal(t, models.ExecutionStatusActive, execution.Status)
}

func TestAPIHandlers_TriggerEvent_Validation(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/events", web.TriggerEventRequest{
		EventType: "solar_flare",
		UserID:    "u1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/events", web.TriggerEventRequest{
		EventType: "user_signup",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_CancelExecution(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/rules", validRuleRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodPost, "/events", web.TriggerEventRequest{
		EventType: "user_signup",
		UserID:    "u1",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result web.TriggerEventResponse
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.ExecutionIDs, 1)

	executionID := result.ExecutionIDs[0]

	resp, _ = doJSON(t, app, http.MethodPost, "/executions/"+executionID+"/cancel", web.CancelExecutionRequest{Reason: "user opted out"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/executions/"+executionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var execution models.Execution
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, models.ExecutionStatusCancelled, execution.Status)
	assert.Equal(t, "user opted out", execution.ErrorMessage)

	// Cancelling twice conflicts with the terminal state.
	resp, _ = doJSON(t, app, http.MethodPost, "/executions/"+executionID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/executions/missing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_UserExecutions(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/rules", validRuleRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for range 3 {
		resp, _ = doJSON(t, app, http.MethodPost, "/events", web.TriggerEventRequest{
			EventType: "user_signup",
			UserID:    "u1",
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	var listing struct {
		Executions []*models.Execution `json:"executions"`
		Count      int                 `json:"count"`
	}

	resp, body := doJSON(t, app, http.MethodGet, "/users/u1/executions", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 3, listing.Count)

	resp, body = doJSON(t, app, http.MethodGet, "/users/u1/executions?limit=2", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 2, listing.Count)

	resp, body = doJSON(t, app, http.MethodGet, "/users/unknown/executions", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Equal(t, 0, listing.Count)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
}
