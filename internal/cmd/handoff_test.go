package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/coordinator/internal/executor"
	"github.com/harrison/coordinator/internal/models"
)

func TestHandoffCommand(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	agents := newFakeAgents(t, func(req models.AgentTaskRequest) models.AgentResult {
		return models.AgentResult{ResultData: map[string]any{"handled": req.TaskType}, ConfidenceScore: 0.75}
	})
	cfgPath := agents.writeConfig(t, dir, []string{"billing"}, "log_level: error\n")

	output, err := executeCommand(t, "handoff", "--config", cfgPath,
		"--from", "triage", "--to", "billing", "--reason", "escalate",
		"--task-id", "t-1", "--data", "invoice=INV-7", "--context", "tier=gold")
	require.NoError(t, err, output)

	var result models.AgentResult
	require.NoError(t, json.Unmarshal([]byte(output), &result), output)
	assert.Equal(t, "billing", result.AgentType)
	assert.Equal(t, "escalate", result.ResultData["handled"])
	assert.Equal(t, 0.75, result.ConfidenceScore)

	req, ok := agents.requestFor("billing")
	require.True(t, ok)
	assert.Equal(t, "escalate", req.TaskType)
	assert.Equal(t, "t-1", req.TaskID)
	assert.Equal(t, "INV-7", req.InputData["invoice"])
	assert.Equal(t, "gold", req.Context.Values["tier"])
}

func TestHandoffCommand_Errors(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	agents := newFakeAgents(t, func(req models.AgentTaskRequest) models.AgentResult {
		return models.AgentResult{Error: "queue full"}
	})
	cfgPath := agents.writeConfig(t, dir, []string{"billing"}, "log_level: error\n")

	_, err := executeCommand(t, "handoff", "--from", "a", "--to", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "reason" not set`)

	_, err = executeCommand(t, "handoff", "--config", cfgPath, "--from", "a", "--to", "nobody", "--reason", "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no endpoint configured for agent nobody")

	_, err = executeCommand(t, "handoff", "--config", cfgPath, "--from", "a", "--to", "billing", "--reason", "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handoff to billing failed")
	assert.True(t, executor.IsAgentError(err))
}
