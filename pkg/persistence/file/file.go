// Package file provides a file-based persistence implementation for rules and
// execution records.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root          string
	ruleRepo      *RuleRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		ruleRepo:      NewRuleRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Rules(ctx context.Context) ([]*models.AutomationRule, error) {
	return fp.ruleRepo.GetAll(ctx)
}

func (fp *Persistence) RuleByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	return fp.ruleRepo.GetByID(ctx, id)
}

func (fp *Persistence) SaveRule(ctx context.Context, rule *models.AutomationRule) error {
	return fp.ruleRepo.Save(ctx, rule)
}

func (fp *Persistence) DeleteRule(ctx context.Context, id string) error {
	return fp.ruleRepo.Delete(ctx, id)
}

func (fp *Persistence) RecordExecutionStart(ctx context.Context, execution *models.Execution) error {
	return fp.executionRepo.Save(ctx, execution)
}

func (fp *Persistence) RecordExecutionEnd(ctx context.Context, execution *models.Execution) error {
	return fp.executionRepo.Save(ctx, execution)
}

func (fp *Persistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	return fp.executionRepo.GetByID(ctx, id)
}

func (fp *Persistence) ExecutionsByUser(ctx context.Context, userID string, limit int) ([]*models.Execution, error) {
	return fp.executionRepo.GetByUser(ctx, userID, limit)
}
