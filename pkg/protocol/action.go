// Package protocol defines the interfaces between the engine core, action
// executors, and external collaborators.
package protocol

import (
	"context"
	"log/slog"

	"github.com/driphq/drip/pkg/models"
)

// ActionContext carries the data an executor may need: the owning execution
// (read-only snapshot) and the user's profile attributes.
type ActionContext struct {
	Execution *models.Execution
	Profile   map[string]any
}

// ActionExecutor runs one action kind. A nil error is a successful
// invocation; a non-nil error is a failed one. Whether failure terminates the
// execution is decided by the execution manager, not the executor.
type ActionExecutor interface {
	Execute(ctx context.Context, actionCtx ActionContext, logger *slog.Logger) error
}

// ExecutorFactory builds an executor for one action kind from the action's
// parameter map.
type ExecutorFactory interface {
	Create(params map[string]any) (ActionExecutor, error)
	ID() models.ActionType
	// Schema returns the JSON Schema the action's parameters must satisfy at
	// rule-save time. A nil schema means any parameters are accepted.
	Schema() map[string]any
}
