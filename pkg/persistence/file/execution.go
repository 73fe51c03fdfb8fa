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

	"github.com/driphq/drip/pkg/models"
)

// ExecutionRepository handles execution record file operations.
type ExecutionRepository struct {
	root string
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// GetByID retrieves an execution record by its ID. A missing record is
// reported as (nil, nil).
func (er *ExecutionRepository) GetByID(_ context.Context, executionID string) (*models.Execution, error) {
	filePath := filepath.Clean(path.Join(er.root, "executions", executionID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch execution %s: %w", executionID, err)
	}

	var execution models.Execution

	err = json.Unmarshal(body, &execution)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", executionID, err)
	}

	return &execution, nil
}

// GetByUser returns executions for a user, newest first, up to limit.
func (er *ExecutionRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.Execution, error) {
	root := os.DirFS(er.root + "/executions")

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.Execution, 0)

	for _, file := range jsonFiles {
		executionID := file[:len(file)-5]

		execution, err := er.GetByID(ctx, executionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load execution %s: %w", executionID, err)
		}

		if execution != nil && execution.UserID == userID {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}

	return executions, nil
}

// Save upserts an execution record to the file system.
func (er *ExecutionRepository) Save(_ context.Context, execution *models.Execution) error {
	err := os.MkdirAll(er.root+"/executions", 0750)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	filePath := path.Join(er.root+"/executions", execution.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}
