// Package web provides the HTTP API for rule management, event ingestion,
// and execution queries.
package web

import "github.com/driphq/drip/pkg/models"

// CreateRuleRequest is the request body for creating a new automation rule.
type CreateRuleRequest struct {
	Name        string                     `json:"name"        validate:"required,min=3"`
	Description string                     `json:"description"`
	Trigger     models.TriggerCondition    `json:"trigger"     validate:"required"`
	Actions     []*models.AutomationAction `json:"actions"     validate:"dive"`
	IsActive    bool                       `json:"is_active"`
	Tags        []string                   `json:"tags,omitempty"`
	CreatedBy   string                     `json:"created_by,omitempty"`
}

// UpdateRuleRequest is the request body for updating an existing rule.
// All fields are optional to support partial updates.
type UpdateRuleRequest struct {
	Name        *string                    `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string                    `json:"description,omitempty"`
	Trigger     *models.TriggerCondition   `json:"trigger,omitempty"`
	Actions     []*models.AutomationAction `json:"actions,omitempty"     validate:"omitempty,dive"`
	IsActive    *bool                      `json:"is_active,omitempty"`
	Tags        []string                   `json:"tags,omitempty"`
}

// TriggerEventRequest is the request body for ingesting one business event.
type TriggerEventRequest struct {
	EventType string         `json:"event_type" validate:"required"`
	UserID    string         `json:"user_id"    validate:"required"`
	Data      map[string]any `json:"data,omitempty"`
}

// TriggerEventResponse reports which executions an ingested event started.
type TriggerEventResponse struct {
	ExecutionIDs []string `json:"execution_ids"`
	Matched      int      `json:"matched"`
}

// CancelExecutionRequest is the optional request body for cancelling an execution.
type CancelExecutionRequest struct {
	Reason string `json:"reason,omitempty"`
}
