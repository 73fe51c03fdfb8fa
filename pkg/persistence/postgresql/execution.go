package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/driphq/drip/pkg/models"
)

// ExecutionRepository handles execution record database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts an execution record.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	triggerDataJSON, err := json.Marshal(execution.TriggerData)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	query := `
		INSERT INTO executions (id, rule_id, user_id, trigger_data, current_step, status, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			current_step = EXCLUDED.current_step,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.RuleID,
		execution.UserID,
		triggerDataJSON,
		execution.CurrentStep,
		execution.Status,
		nullableString(execution.ErrorMessage),
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}

// GetByID returns an execution record by its ID, or (nil, nil) when it does
// not exist.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `
		SELECT
			id
		  , rule_id
		  , user_id
		  , trigger_data
		  , current_step
		  , status
		  , error_message
		  , started_at
		  , completed_at
		FROM executions
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	execution, err := r.scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// GetByUser returns executions for a user, newest first, up to limit.
func (r *ExecutionRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.Execution, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT
			id
		  , rule_id
		  , user_id
		  , trigger_data
		  , current_step
		  , status
		  , error_message
		  , started_at
		  , completed_at
		FROM executions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func(ctx context.Context, r *ExecutionRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution       models.Execution
		triggerDataJSON []byte
		errorMessage    sql.NullString
	)

	err := row.Scan(
		&execution.ID,
		&execution.RuleID,
		&execution.UserID,
		&triggerDataJSON,
		&execution.CurrentStep,
		&execution.Status,
		&errorMessage,
		&execution.StartedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(triggerDataJSON) > 0 {
		err = json.Unmarshal(triggerDataJSON, &execution.TriggerData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
		}
	}

	execution.ErrorMessage = errorMessage.String

	return &execution, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
