package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/driphq/drip/pkg/engine"
	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	engine    *engine.Engine
	persist   persistence.Persistence
	validator *validator.Validate
}

func NewAPIHandlers(eng *engine.Engine, persist persistence.Persistence, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		engine:    eng,
		persist:   persist,
		validator: validate,
	}
}

// RegisterRoutes mounts every API route on the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Get("/rules", h.ListRules)
	app.Post("/rules", h.CreateRule)
	app.Get("/rules/:id", h.GetRule)
	app.Put("/rules/:id", h.UpdateRule)
	app.Delete("/rules/:id", h.DeleteRule)

	app.Post("/events", h.TriggerEvent)

	app.Get("/executions/:id", h.GetExecution)
	app.Post("/executions/:id/cancel", h.CancelExecution)
	app.Get("/users/:userId/executions", h.UserExecutions)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	storage := "ok"

	if h.persist != nil {
		err := h.persist.HealthCheck(c.Context())
		if err != nil {
			status = "unhealthy"
			httpStatus = http.StatusInternalServerError
			storage = err.Error()
		}
	} else {
		storage = "in-memory"
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"storage": storage,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) ListRules(c fiber.Ctx) error {
	activeOnly := false

	if activeStr := c.Query("active"); activeStr != "" {
		parsed, err := strconv.ParseBool(activeStr)
		if err != nil {
			return badRequest(c, "Invalid 'active' query parameter")
		}

		activeOnly = parsed
	}

	var tags []string
	if tagsStr := c.Query("tags"); tagsStr != "" {
		tags = strings.Split(tagsStr, ",")
	}

	rules := h.engine.ListRules(c.Context(), activeOnly, tags)

	return c.JSON(fiber.Map{
		"rules": rules,
		"count": len(rules),
	})
}

func (h *APIHandlers) CreateRule(c fiber.Ctx) error {
	var req CreateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	rule := &models.AutomationRule{
		Name:        req.Name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Actions:     req.Actions,
		IsActive:    req.IsActive,
		Tags:        req.Tags,
		CreatedBy:   req.CreatedBy,
	}

	err := h.engine.SaveRule(c.Context(), rule)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *APIHandlers) GetRule(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Rule ID is required")
	}

	rule, err := h.engine.GetRule(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(rule)
}

func (h *APIHandlers) UpdateRule(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Rule ID is required")
	}

	var req UpdateRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.engine.GetRule(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	updated := *existing

	if req.Name != nil {
		updated.Name = *req.Name
	}

	if req.Description != nil {
		updated.Description = *req.Description
	}

	if req.Trigger != nil {
		updated.Trigger = *req.Trigger
	}

	if req.Actions != nil {
		updated.Actions = req.Actions
	}

	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}

	if req.Tags != nil {
		updated.Tags = req.Tags
	}

	err = h.engine.SaveRule(c.Context(), &updated)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(&updated)
}

func (h *APIHandlers) DeleteRule(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Rule ID is required")
	}

	err := h.engine.DeleteRule(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) TriggerEvent(c fiber.Ctx) error {
	var req TriggerEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	started, err := h.engine.TriggerEvent(c.Context(), models.EventType(req.EventType), req.UserID, req.Data)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(TriggerEventResponse{
		ExecutionIDs: started,
		Matched:      len(started),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.engine.GetExecution(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req CancelExecutionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	reason := req.Reason
	if reason == "" {
		reason = "cancelled via API"
	}

	err := h.engine.CancelExecution(c.Context(), id, reason)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) UserExecutions(c fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return badRequest(c, "User ID is required")
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			return badRequest(c, "Invalid 'limit' query parameter")
		}

		limit = parsed
	}

	executions, err := h.engine.UserExecutions(c.Context(), userID, limit)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"count":      len(executions),
	})
}
