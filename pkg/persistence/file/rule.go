package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/driphq/drip/pkg/models"
)

// RuleRepository handles rule-related file operations.
type RuleRepository struct {
	root string // File system root for storing rules
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(root string) *RuleRepository {
	return &RuleRepository{root: root}
}

// GetAll returns all rules, newest first.
func (rr *RuleRepository) GetAll(ctx context.Context) ([]*models.AutomationRule, error) {
	root := os.DirFS(rr.root + "/rules")

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}

	rules := make([]*models.AutomationRule, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		ruleID := file[:len(file)-5] // Remove .json extension

		rule, err := rr.GetByID(ctx, ruleID)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule %s: %w", ruleID, err)
		}

		if rule != nil {
			rules = append(rules, rule)
		}
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].CreatedAt.After(rules[j].CreatedAt)
	})

	return rules, nil
}

// GetByID retrieves a rule by its ID from the file system. A missing rule is
// reported as (nil, nil).
func (rr *RuleRepository) GetByID(_ context.Context, ruleID string) (*models.AutomationRule, error) {
	filePath := filepath.Clean(path.Join(rr.root, "rules", ruleID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch rule %s: %w", ruleID, err)
	}

	var rule models.AutomationRule

	err = json.Unmarshal(body, &rule)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule %s: %w", ruleID, err)
	}

	return &rule, nil
}

// Save saves a rule to the file system.
func (rr *RuleRepository) Save(_ context.Context, rule *models.AutomationRule) error {
	err := os.MkdirAll(rr.root+"/rules", 0750)
	if err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	rule.UpdatedAt = now

	data, err := json.MarshalIndent(rule, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rule %s: %w", rule.ID, err)
	}

	filePath := path.Join(rr.root+"/rules", rule.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// Delete removes a rule by its ID. Deleting a missing rule is not an error.
func (rr *RuleRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(rr.root+"/rules", id+".json")

	err := os.Remove(filePath)

	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}

	return nil
}
