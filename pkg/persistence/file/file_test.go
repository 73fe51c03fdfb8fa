package file

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/driphq/drip/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	// Test with regular path
	persistence := NewPersistence("/tmp/test")
	fp := persistence.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)

	// Test with file:// prefix
	persistence = NewPersistence("file:///tmp/test")
	fp = persistence.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_Close(t *testing.T) {
	persistence := NewPersistence("./test-data")
	err := persistence.Close(t.Context())
	assert.NoError(t, err)
}

func testRule(id string) *models.AutomationRule {
	return &models.AutomationRule{
		ID:          id,
		Name:        "Welcome Series",
		Description: "Sends a welcome email on signup",
		Trigger: models.TriggerCondition{
			EventType: models.EventUserSignup,
		},
		Actions: []*models.AutomationAction{
			{
				Type:       models.ActionSendEmail,
				Parameters: map[string]any{"subject": "Welcome!"},
			},
		},
		IsActive: true,
	}
}

func TestPersistence_SaveRule(t *testing.T) {
	testDir := t.TempDir()

	persistence := NewPersistence(testDir)

	rule := testRule("test-rule")

	err := persistence.SaveRule(t.Context(), rule)
	require.NoError(t, err)

	// Verify file was created
	filePath := filepath.Join(testDir, "rules", "test-rule.json")
	assert.FileExists(t, filePath)

	// Verify timestamps were set
	assert.False(t, rule.CreatedAt.IsZero())
	assert.False(t, rule.UpdatedAt.IsZero())
}

func TestPersistence_SaveRule_UpdatesTimestamp(t *testing.T) {
	testDir := t.TempDir()

	persistence := NewPersistence(testDir)

	rule := testRule("update-rule")
	rule.CreatedAt = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	err := persistence.SaveRule(t.Context(), rule)
	require.NoError(t, err)

	assert.Equal(t, 2023, rule.CreatedAt.Year())
	assert.True(t, rule.UpdatedAt.After(rule.CreatedAt))
}

func TestPersistence_RuleByID(t *testing.T) {
	testDir := t.TempDir()

	persistence := NewPersistence(testDir)

	rule := testRule("lookup-rule")
	require.NoError(t, persistence.SaveRule(t.Context(), rule))

	loaded, err := persistence.RuleByID(t.Context(), "lookup-rule")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, rule.Name, loaded.Name)
	assert.Equal(t, models.EventUserSignup, loaded.Trigger.EventType)
	require.Len(t, loaded.Actions, 1)
	assert.Equal(t, models.ActionSendEmail, loaded.Actions[0].Type)
}

func TestPersistence_RuleByID_NotFound(t *testing.T) {
	persistence := NewPersistence(t.TempDir())

	loaded, err := persistence.RuleByID(t.Context(), "missing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestPersistence_Rules_SortedNewestFirst(t *testing.T) {
	persistence := NewPersistence(t.TempDir())

	older := testRule("older")
	require.NoError(t, persistence.SaveRule(t.Context(), older))

	time.Sleep(10 * time.Millisecond)

	newer := testRule("newer")
	require.NoError(t, persistence.SaveRule(t.Context(), newer))

	rules, err := persistence.Rules(t.Context())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "newer", rules[0].ID)
	assert.Equal(t, "older", rules[1].ID)
}

func TestPersistence_DeleteRule(t *testing.T) {
	persistence := NewPersistence(t.TempDir())

	rule := testRule("delete-me")
	require.NoError(t, persistence.SaveRule(t.Context(), rule))

	err := persistence.DeleteRule(t.Context(), "delete-me")
	require.NoError(t, err)

	loaded, err := persistence.RuleByID(t.Context(), "delete-me")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Deleting a missing rule is not an error
	err = persistence.DeleteRule(t.Context(), "delete-me")
	assert.NoError(t, err)
}

func TestPersistence_ExecutionRoundTrip(t *testing.T) {
	persistence := NewPersistence(t.TempDir())

	execution := &models.Execution{
		ID:          "exec-1",
		RuleID:      "rule-1",
		UserID:      "u1",
		TriggerData: map[string]any{"amount": 100.0},
		Status:      models.ExecutionStatusActive,
		StartedAt:   time.Now().UTC(),
	}

	require.NoError(t, persistence.RecordExecutionStart(t.Context(), execution))

	// Terminal update overwrites the same record
	execution.Status = models.ExecutionStatusCompleted
	execution.CurrentStep = 3
	now := time.Now().UTC()
	execution.CompletedAt = &now
	require.NoError(t, persistence.RecordExecutionEnd(t.Context(), execution))

	loaded, err := persistence.ExecutionByID(t.Context(), "exec-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, 3, loaded.CurrentStep)
	require.NotNil(t, loaded.CompletedAt)
}

func TestPersistence_ExecutionsByUser(t *testing.T) {
	persistence := NewPersistence(t.TempDir())

	for i, id := range []string{"e1", "e2", "e3"} {
		userID := "u1"
		if id == "e3" {
			userID = "u2"
		}

		execution := &models.Execution{
			ID:        id,
			RuleID:    "rule-1",
			UserID:    userID,
			Status:    models.ExecutionStatusActive,
			StartedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, persistence.RecordExecutionStart(t.Context(), execution))
	}

	executions, err := persistence.ExecutionsByUser(t.Context(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, "e2", executions[0].ID)

	limited, err := persistence.ExecutionsByUser(t.Context(), "u1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
