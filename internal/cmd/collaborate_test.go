package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/coordinator/internal/executor"
	"github.com/harrison/coordinator/internal/models"
)

func TestCollaborateCommand(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	agents := newFakeAgents(t, func(req models.AgentTaskRequest) models.AgentResult {
		if req.AgentType == "style" {
			return models.AgentResult{Error: "unavailable"}
		}
		return models.AgentResult{ResultData: map[string]any{"by": req.AgentType}, ConfidenceScore: 0.6}
	})
	cfgPath := agents.writeConfig(t, dir, []string{"drafter", "legal", "style"}, "log_level: error\n")

	output, err := executeCommand(t, "collaborate", "--config", cfgPath,
		"--primary", "drafter", "--support", "legal", "--support", "style",
		"--type", "contract", "--data", "clause=indemnity")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collaboration failed")

	// The JSON result precedes the error and keeps request order.
	var result executor.CollaborationResult
	dec := json.NewDecoder(strings.NewReader(output[strings.Index(output, "{"):]))
	require.NoError(t, dec.Decode(&result), output)
	require.Len(t, result.Results, 3)
	assert.Equal(t, "drafter", result.Results[0].AgentType)
	assert.Equal(t, "legal", result.Results[1].AgentType)
	assert.Equal(t, "style", result.Results[2].AgentType)
	assert.NotEmpty(t, result.Results[2].Error)

	legalReq, ok := agents.requestFor("legal")
	require.True(t, ok)
	assert.Equal(t, "contract_review", legalReq.TaskType)
	assert.Equal(t, map[string]any{"by": "drafter"}, legalReq.InputData["primary_result"])
	assert.Equal(t, map[string]any{"clause": "indemnity"}, legalReq.InputData["original_data"])
}
