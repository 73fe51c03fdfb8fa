package models

import "time"

// ExecutionStatus represents the lifecycle state of an execution.
type ExecutionStatus string

const (
	ExecutionStatusActive    ExecutionStatus = "active"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status is one of the terminal states.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// Execution is one live instance of a rule running for one user.
//
// CurrentStep only increases while the status is active; once the execution
// reaches a terminal state the step index is frozen. TriggerData is an
// immutable snapshot of the event payload that started the execution.
type Execution struct {
	ID           string          `json:"id"`
	RuleID       string          `json:"rule_id"`
	UserID       string          `json:"user_id"`
	TriggerData  map[string]any  `json:"trigger_data,omitempty"`
	CurrentStep  int             `json:"current_step"`
	Status       ExecutionStatus `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Clone returns a shallow copy safe to hand to callers outside the engine lock.
func (e *Execution) Clone() *Execution {
	clone := *e

	return &clone
}
