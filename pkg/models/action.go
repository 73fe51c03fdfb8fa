package models

// ActionType identifies one of the closed set of supported automation action kinds.
type ActionType string

const (
	ActionSendEmail         ActionType = "send_email"
	ActionWait              ActionType = "wait"
	ActionConditionCheck    ActionType = "condition_check"
	ActionUpdateProfile     ActionType = "update_profile"
	ActionAddToSegment      ActionType = "add_to_segment"
	ActionRemoveFromSegment ActionType = "remove_from_segment"
	ActionTriggerWebhook    ActionType = "trigger_webhook"
	ActionScheduleFollowup  ActionType = "schedule_followup"
	ActionSendNotification  ActionType = "send_notification"
	ActionLogEvent          ActionType = "log_event"
)

// IsValid checks if the action type is one of the supported kinds.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionSendEmail, ActionWait, ActionConditionCheck,
		ActionUpdateProfile, ActionAddToSegment, ActionRemoveFromSegment,
		ActionTriggerWebhook, ActionScheduleFollowup,
		ActionSendNotification, ActionLogEvent:
		return true
	default:
		return false
	}
}

// AutomationAction is one step in a rule's action sequence.
//
// DelayMinutes is relative to completion of the previous step. Condition, when
// present, guards the step: an unsatisfied guard skips the step and counts as
// success. IsRequired decides whether a failed invocation fails the whole
// execution or is swallowed.
type AutomationAction struct {
	Type         ActionType     `json:"type"                    validate:"required"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	DelayMinutes int            `json:"delay_minutes"           validate:"min=0"`
	Condition    map[string]any `json:"condition,omitempty"`
	IsRequired   bool           `json:"is_required"`
}
