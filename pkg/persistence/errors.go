// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrRuleNotFound indicates a rule was not found by the given identifier.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrRuleAlreadyExists indicates a rule with the same identifier already exists.
	ErrRuleAlreadyExists = errors.New("rule already exists")
)

// RuleError wraps rule-related errors with additional context.
type RuleError struct {
	Op      string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	RuleID  string // Rule ID if applicable
	Err     error  // Underlying error
	Message string // Additional context message
}

func (e *RuleError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for rule %s: %s (%v)", e.Op, e.RuleID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for rule %s: %v", e.Op, e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for rule errors.
func (e *RuleError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRuleError creates a new rule error with context.
func NewRuleError(op, ruleID string, err error) *RuleError {
	return &RuleError{
		Op:     op,
		RuleID: ruleID,
		Err:    err,
	}
}

// ExecutionError wraps execution-related errors with additional context.
type ExecutionError struct {
	Op          string // Operation being performed
	ExecutionID string // Execution ID
	Err         error  // Underlying error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsRuleNotFound checks if an error indicates a rule was not found.
func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}
