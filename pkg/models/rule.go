// Package models defines the core domain models for rule-driven marketing automation.
package models

import "time"

// EventType identifies the kind of external business event that can activate a rule.
type EventType string

const (
	EventUserSignup            EventType = "user_signup"
	EventPurchaseComplete      EventType = "purchase_complete"
	EventCartAbandoned         EventType = "cart_abandoned"
	EventEmailOpened           EventType = "email_opened"
	EventEmailClicked          EventType = "email_clicked"
	EventPageView              EventType = "page_view"
	EventFormSubmitted         EventType = "form_submitted"
	EventSubscriptionStarted   EventType = "subscription_started"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventCustom                EventType = "custom_event"
)

// IsValid checks if the event type is one of the supported kinds.
func (e EventType) IsValid() bool {
	switch e {
	case EventUserSignup, EventPurchaseComplete, EventCartAbandoned,
		EventEmailOpened, EventEmailClicked, EventPageView,
		EventFormSubmitted, EventSubscriptionStarted,
		EventSubscriptionCancelled, EventCustom:
		return true
	default:
		return false
	}
}

// TriggerCondition is the gate that decides whether a rule fires for an event.
type TriggerCondition struct {
	EventType     EventType      `json:"event_type"               validate:"required"`
	Conditions    map[string]any `json:"conditions,omitempty"`
	DelayMinutes  int            `json:"delay_minutes"            validate:"min=0"`
	MaxTriggers   int            `json:"max_triggers"             validate:"min=0"`
	CooldownHours int            `json:"cooldown_hours"           validate:"min=0"`
}

// AutomationRule is a named trigger condition plus an ordered list of actions.
type AutomationRule struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"        validate:"required,min=3"`
	Description string              `json:"description"`
	Trigger     TriggerCondition    `json:"trigger"     validate:"required"`
	Actions     []*AutomationAction `json:"actions"     validate:"dive"`
	IsActive    bool                `json:"is_active"`
	Tags        []string            `json:"tags,omitempty"`
	CreatedBy   string              `json:"created_by,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
