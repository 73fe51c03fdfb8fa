package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/driphq/drip/pkg/models"
	"github.com/google/uuid"
)

// RuleRepository handles rule-related database operations.
type RuleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db *sql.DB, logger *slog.Logger) *RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

// GetAll returns all rules from the database, newest first.
func (r *RuleRepository) GetAll(ctx context.Context) ([]*models.AutomationRule, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , trigger
		  , actions
		  , is_active
		  , tags
		  , created_by
		  , created_at
		  , updated_at
		FROM rules
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	defer func(ctx context.Context, r *RuleRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	rules := make([]*models.AutomationRule, 0)

	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rules = append(rules, rule)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// GetByID returns a rule by its ID, or (nil, nil) when it does not exist.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.AutomationRule, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , trigger
		  , actions
		  , is_active
		  , tags
		  , created_by
		  , created_at
		  , updated_at
		FROM rules
		WHERE id = $1 AND deleted_at IS NULL
	`

	row := r.db.QueryRowContext(ctx, query, id)

	rule, err := r.scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	return rule, nil
}

// Save upserts a rule.
func (r *RuleRepository) Save(ctx context.Context, rule *models.AutomationRule) error {
	now := time.Now().UTC()

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	rule.UpdatedAt = now

	if rule.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate rule ID: %w", err)
		}

		rule.ID = id.String()
	}

	triggerJSON, err := json.Marshal(rule.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger: %w", err)
	}

	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	tagsJSON, err := json.Marshal(rule.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO rules (id, name, description, trigger, actions, is_active, tags, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			trigger = EXCLUDED.trigger,
			actions = EXCLUDED.actions,
			is_active = EXCLUDED.is_active,
			tags = EXCLUDED.tags,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.Description,
		triggerJSON,
		actionsJSON,
		rule.IsActive,
		tagsJSON,
		rule.CreatedBy,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}

	return nil
}

// Delete soft deletes a rule by setting the deleted_at timestamp.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE rules SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RuleRepository) scanRule(row rowScanner) (*models.AutomationRule, error) {
	var (
		rule        models.AutomationRule
		triggerJSON []byte
		actionsJSON []byte
		tagsJSON    []byte
		createdBy   sql.NullString
	)

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Description,
		&triggerJSON,
		&actionsJSON,
		&rule.IsActive,
		&tagsJSON,
		&createdBy,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(triggerJSON, &rule.Trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger: %w", err)
	}

	err = json.Unmarshal(actionsJSON, &rule.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	if len(tagsJSON) > 0 {
		err = json.Unmarshal(tagsJSON, &rule.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	rule.CreatedBy = createdBy.String

	return &rule, nil
}
