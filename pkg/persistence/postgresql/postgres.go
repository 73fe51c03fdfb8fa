// Package postgresql provides the PostgreSQL persistence implementation for
// rules and execution records.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	ruleRepo      *RuleRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:            database,
		logger:        logger,
		ruleRepo:      NewRuleRepository(database, logger),
		executionRepo: NewExecutionRepository(database, logger),
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Rules returns all rules from the database.
func (p *Persistence) Rules(ctx context.Context) ([]*models.AutomationRule, error) {
	return p.ruleRepo.GetAll(ctx)
}

// RuleByID returns a rule by its ID.
func (p *Persistence) RuleByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	return p.ruleRepo.GetByID(ctx, id)
}

// SaveRule upserts a rule.
func (p *Persistence) SaveRule(ctx context.Context, rule *models.AutomationRule) error {
	return p.ruleRepo.Save(ctx, rule)
}

// DeleteRule soft deletes a rule by setting the deleted_at timestamp.
func (p *Persistence) DeleteRule(ctx context.Context, id string) error {
	return p.ruleRepo.Delete(ctx, id)
}

// RecordExecutionStart persists a newly started execution.
func (p *Persistence) RecordExecutionStart(ctx context.Context, execution *models.Execution) error {
	return p.executionRepo.Save(ctx, execution)
}

// RecordExecutionEnd updates an execution with its terminal state.
func (p *Persistence) RecordExecutionEnd(ctx context.Context, execution *models.Execution) error {
	return p.executionRepo.Save(ctx, execution)
}

// ExecutionByID returns an execution record by its ID.
func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	return p.executionRepo.GetByID(ctx, id)
}

// ExecutionsByUser returns executions for a user, newest first, up to limit.
func (p *Persistence) ExecutionsByUser(ctx context.Context, userID string, limit int) ([]*models.Execution, error) {
	return p.executionRepo.GetByUser(ctx, userID, limit)
}
