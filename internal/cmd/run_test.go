package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/coordinator/internal/history"
	"github.com/harrison/coordinator/internal/models"
)

func TestRunCommand_DryRunShowsLevels(t *testing.T) {
	isolateHome(t)
	plan := writeTestFile(t, t.TempDir(), "plan.yaml", parallelPlanYAML)

	output, err := executeCommand(t, "run", "--dry-run", plan)
	require.NoError(t, err)

	for _, want := range []string{
		"Name: Listing intake",
		"Pattern: parallel",
		"Agents: 3",
		"Dry-run mode: plan is valid.",
		"Level 1: listing",
		"Level 2: valuation, photos",
	} {
		assert.Contains(t, output, want)
	}
}

func TestRunCommand_DryRunShowsOrder(t *testing.T) {
	isolateHome(t)
	plan := writeTestFile(t, t.TempDir(), "plan.yaml", `coordination_type: conditional
agents:
  - agent_type: review
    execution_order: 2
    dependencies: [draft]
    conditions: ["draft.confidence < 0.9"]
  - agent_type: draft
    execution_order: 1
`)

	output, err := executeCommand(t, "run", "--dry-run", plan)
	require.NoError(t, err)
	assert.Contains(t, output, "1. draft")
	assert.Contains(t, output, "2. review (after draft) [if draft.confidence < 0.9]")
}

func TestRunCommand_ExecutesPlan(t *testing.T) {
	home := isolateHome(t)
	dir := t.TempDir()
	agents := newFakeAgents(t, echoResult(0.8))
	cfgPath := agents.writeConfig(t, dir, []string{"listing", "valuation", "photos"}, "")
	plan := writeTestFile(t, dir, "plan.yaml", parallelPlanYAML)
	outPath := filepath.Join(dir, "out", "result.json")

	output, err := executeCommand(t, "run", "--config", cfgPath, "--output", outPath, plan)
	require.NoError(t, err, output)

	assert.Contains(t, output, "Starting coordination...")
	assert.Contains(t, output, "=== Coordination Summary ===")
	assert.Contains(t, output, "Status: completed")
	assert.Contains(t, output, "Result written to "+outPath)

	// valuation received the mapped field from listing
	req, ok := agents.requestFor("valuation")
	require.True(t, ok)
	assert.Equal(t, "1 Main St", req.InputData["address"])
	assert.Equal(t, "task-42", req.TaskID)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var result models.CoordinationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Len(t, result.AgentResults, 3)
	assert.InDelta(t, 0.8, result.AverageConfidence, 1e-9)

	// The run landed in the default history database under COORDINATOR_HOME.
	store, err := history.NewStore(filepath.Join(home, "history", "coordinations.db"))
	require.NoError(t, err)
	defer store.Close()
	run, err := store.GetRun(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, run.Status)
	assert.Len(t, run.AgentResults, 3)
}

func TestRunCommand_ContextAndOverrides(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	agents := newFakeAgents(t, echoResult(0.9))
	cfgPath := agents.writeConfig(t, dir, []string{"listing"}, "history:\n  enabled: false\n")
	plan := writeTestFile(t, dir, "plan.yaml", "coordination_type: sequential\nagents:\n  - agent_type: listing\n")

	_, err := executeCommand(t, "run", "--config", cfgPath,
		"--context", "region=eu", "--context", "tier=2",
		"--task-id", "cli-task", "--workflow-type", "intake", plan)
	require.NoError(t, err)

	req, ok := agents.requestFor("listing")
	require.True(t, ok)
	assert.Equal(t, "cli-task", req.TaskID)
	assert.Equal(t, "intake", req.Context.WorkflowType)
	assert.Equal(t, "eu", req.Context.Values["region"])
	assert.Equal(t, float64(2), req.Context.Values["tier"])
}

func TestRunCommand_AgentFailure(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	agents := newFakeAgents(t, func(req models.AgentTaskRequest) models.AgentResult {
		if req.AgentType == "valuation" {
			return models.AgentResult{Error: "no comparables"}
		}
		return models.AgentResult{ConfidenceScore: 0.7}
	})
	cfgPath := agents.writeConfig(t, dir, []string{"listing", "valuation", "photos"}, "")
	plan := writeTestFile(t, dir, "plan.yaml", parallelPlanYAML)
	outPath := filepath.Join(dir, "result.json")

	output, err := executeCommand(t, "run", "--config", cfgPath, "--output", outPath, plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coordination failed")
	assert.Contains(t, output, "Status: failed")
	assert.Contains(t, output, "no comparables")

	// A failed run still writes its partial result.
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var result models.CoordinationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.ElementsMatch(t, []string{"listing", "photos"}, result.CompletedAgents)
}

func TestRunCommand_Errors(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	validPlan := writeTestFile(t, dir, "plan.yaml", parallelPlanYAML)
	circular := writeTestFile(t, dir, "circular.yaml", circularPlanYAML)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no args", []string{"run"}, "accepts 1 arg"},
		{"missing file", []string{"run", filepath.Join(dir, "nope.yaml")}, "failed to load plan file"},
		{"unknown format", []string{"run", writeTestFile(t, dir, "plan.txt", "x")}, "unknown file format"},
		{"circular plan", []string{"run", circular}, "invalid plan"},
		{"bad timeout", []string{"run", "--timeout", "soon", validPlan}, "invalid timeout format"},
		{"bad log level", []string{"run", "--log-level", "loud", validPlan}, "invalid configuration"},
		{"bad context", []string{"run", "--context", "novalue", validPlan}, "invalid --context"},
		{"missing endpoints", []string{"run", validPlan}, "no endpoint configured for agent(s): listing, valuation, photos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should contain %q", err, tt.wantErr)
		})
	}
}

func TestParseKeyValues(t *testing.T) {
	values, err := parseKeyValues([]string{"region=eu", "tier=2", "ratio=0.5", "strict=true", "note=a=b", "empty=", "list=[1, 2]"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"region": "eu",
		"tier":   2,
		"ratio":  0.5,
		"strict": true,
		"note":   "a=b",
		"empty":  "",
		"list":   "[1, 2]",
	}, values)

	values, err = parseKeyValues(nil)
	require.NoError(t, err)
	assert.Nil(t, values)

	for _, bad := range []string{"novalue", "=x", " =x"} {
		_, err := parseKeyValues([]string{bad})
		assert.Error(t, err, bad)
	}
}
