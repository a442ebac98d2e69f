package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/coordinator/internal/history"
	"github.com/harrison/coordinator/internal/models"
)

func seedHistory(t *testing.T, dbPath string) {
	t.Helper()
	store, err := history.NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	results := []*models.CoordinationResult{
		{
			ID:               "run-ok",
			TaskID:           "task-1",
			CoordinationType: string(models.CoordinationFeedbackLoop),
			Status:           models.StatusCompleted,
			AgentResults: []models.AgentResult{
				{AgentType: "draft", ConfidenceScore: 0.9, CostUnits: 2, Duration: time.Second},
			},
			CompletedAgents:   []string{"draft"},
			StartTime:         start,
			EndTime:           start.Add(time.Second),
			Elapsed:           time.Second,
			TotalCost:         2,
			AverageConfidence: 0.9,
			Iterations:        3,
			Converged:         true,
		},
		{
			ID:               "run-bad",
			CoordinationType: string(models.CoordinationSequential),
			Status:           models.StatusFailed,
			AgentResults: []models.AgentResult{
				{AgentType: "draft", ConfidenceScore: 0.1, Error: "timeout"},
			},
			Errors:    []string{"agent draft: invocation failed: timeout"},
			StartTime: start.Add(time.Hour),
			EndTime:   start.Add(time.Hour + time.Second),
			Elapsed:   time.Second,
		},
	}
	for _, r := range results {
		require.NoError(t, store.RecordResult(context.Background(), r, "plan.md"))
	}
}

func TestHistoryCommand_NoDatabase(t *testing.T) {
	isolateHome(t)

	output, err := executeCommand(t, "history")
	require.NoError(t, err)
	assert.Contains(t, output, "No coordination history found.")
}

func TestHistoryCommand_List(t *testing.T) {
	home := isolateHome(t)
	seedHistory(t, filepath.Join(home, "history", "coordinations.db"))

	output, err := executeCommand(t, "history")
	require.NoError(t, err)
	assert.Contains(t, output, "=== Recent Coordinations ===")
	assert.Less(t, strings.Index(output, "run-bad"), strings.Index(output, "run-ok"), "newest run should be listed first")

	output, err = executeCommand(t, "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, output, "run-bad")
	assert.NotContains(t, output, "run-ok")
}

func TestHistoryCommand_ExplicitDBPath(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "custom.db")
	seedHistory(t, dbPath)
	cfgPath := writeTestFile(t, dir, "config.yaml", "history:\n  db_path: "+dbPath+"\n")

	output, err := executeCommand(t, "history", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, output, "run-ok")
}

func TestHistoryCommand_Show(t *testing.T) {
	home := isolateHome(t)
	seedHistory(t, filepath.Join(home, "history", "coordinations.db"))

	output, err := executeCommand(t, "history", "show", "run-ok")
	require.NoError(t, err)
	for _, want := range []string{
		"=== Coordination run-ok ===",
		"Plan: plan.md",
		"Task: task-1",
		"Pattern: feedback_loop",
		"Status: completed",
		"Iterations: 3 (converged: true)",
		"draft: confidence 0.90, cost 2.00, 1s",
	} {
		assert.Contains(t, output, want)
	}

	output, err = executeCommand(t, "history", "show", "run-bad")
	require.NoError(t, err)
	assert.Contains(t, output, "(error: timeout)")
	assert.Contains(t, output, "- agent draft: invocation failed: timeout")

	_, err = executeCommand(t, "history", "show", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no coordination with id nope")
}

func TestHistoryCommand_Agent(t *testing.T) {
	home := isolateHome(t)
	seedHistory(t, filepath.Join(home, "history", "coordinations.db"))

	output, err := executeCommand(t, "history", "agent", "draft")
	require.NoError(t, err)
	for _, want := range []string{
		"=== Agent draft ===",
		"Invocations: 2",
		"Failures: 1",
		"Success rate: 50.0%",
		"Average confidence: 0.50",
		"Total cost: 2.00",
	} {
		assert.Contains(t, output, want)
	}

	output, err = executeCommand(t, "history", "agent", "ghost")
	require.NoError(t, err)
	assert.Contains(t, output, "No results recorded for agent ghost.")
}
