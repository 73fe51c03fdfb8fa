// Package persistence provides the data storage abstraction layer for
// automation rules and execution records.
package persistence

import (
	"context"

	"github.com/driphq/drip/pkg/models"
)

type Persistence interface {
	Rules(ctx context.Context) ([]*models.AutomationRule, error)
	RuleByID(ctx context.Context, id string) (*models.AutomationRule, error)
	SaveRule(ctx context.Context, rule *models.AutomationRule) error
	DeleteRule(ctx context.Context, id string) error

	// RecordExecutionStart persists a freshly started execution;
	// RecordExecutionEnd updates it with its terminal state. Both upsert, so
	// replaying either after a crash is safe.
	RecordExecutionStart(ctx context.Context, execution *models.Execution) error
	RecordExecutionEnd(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	ExecutionsByUser(ctx context.Context, userID string, limit int) ([]*models.Execution, error)

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
