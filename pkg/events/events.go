// Package events defines event types and structures for automation lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single bus topic all lifecycle events are published on.
const Topic = "drip.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// User event ingestion.
	EventReceivedEvent EventType = "event.received"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	// Rule management events.
	RuleCreatedEvent EventType = "rule.created"
	RuleUpdatedEvent EventType = "rule.updated"
	RuleDeletedEvent EventType = "rule.deleted"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RuleID    string         `json:"rule_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type EventReceived struct {
	BaseEvent

	UserID    string         `json:"user_id"`
	EventName string         `json:"event_name"`
	EventData map[string]any `json:"event_data,omitempty"`
	Matched   int            `json:"matched"`
}

func (e EventReceived) GetType() EventType {
	return EventReceivedEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	UserID      string         `json:"user_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	ActionCount int            `json:"action_count"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	UserID        string `json:"user_id"`
	StepsExecuted int    `json:"steps_executed"`
	DurationMs    int64  `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	UserID      string `json:"user_id"`
	FailedStep  int    `json:"failed_step"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	UserID      string `json:"user_id"`
	Reason      string `json:"reason,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type RuleCreated struct {
	BaseEvent

	RuleName string `json:"rule_name"`
}

func (e RuleCreated) GetType() EventType {
	return RuleCreatedEvent
}

type RuleUpdated struct {
	BaseEvent

	RuleName string `json:"rule_name"`
	IsActive bool   `json:"is_active"`
}

func (e RuleUpdated) GetType() EventType {
	return RuleUpdatedEvent
}

type RuleDeleted struct {
	BaseEvent

	CancelledExecutions int `json:"cancelled_executions"`
}

func (e RuleDeleted) GetType() EventType {
	return RuleDeletedEvent
}

func NewBaseEvent(eventType EventType, ruleID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RuleID:    ruleID,
		Metadata:  make(map[string]any),
	}
}
