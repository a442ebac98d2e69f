package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/harrison/coordinator/internal/models"
)

// CommandInvoker runs a local executable per invocation. The request is
// written to stdin as JSON and the AgentResult is read from stdout. Any
// prose printed around the JSON object is ignored.
type CommandInvoker struct {
	// Path is the executable to run (resolved through PATH).
	Path string

	// Args are passed to the executable on every invocation.
	Args []string

	// Timeout is the default timeout for invocations.
	// Can be overridden per-request via context.
	Timeout time.Duration
}

// NewCommandInvoker creates a CommandInvoker.
func NewCommandInvoker(path string, args []string, timeout time.Duration) *CommandInvoker {
	return &CommandInvoker{Path: path, Args: args, Timeout: timeout}
}

// Invoke implements executor.AgentInvoker.
func (c *CommandInvoker) Invoke(ctx context.Context, req models.AgentTaskRequest) (models.AgentResult, error) {
	if c.Path == "" {
		return models.AgentResult{}, fmt.Errorf("agent %s: command path is required", req.AgentType)
	}

	input, err := json.Marshal(req)
	if err != nil {
		return models.AgentResult{}, fmt.Errorf("encode request for %s: %w", req.AgentType, err)
	}

	ctx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = append(os.Environ(),
		"COORDINATOR_AGENT_TYPE="+req.AgentType,
		"COORDINATOR_TASK_ID="+req.TaskID,
	)
	cmd.Stdin = bytes.NewReader(append(input, '\n'))
	// Children that inherit stdout must not hold Wait open past cancellation.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return models.AgentResult{}, fmt.Errorf("agent %s command: %w", req.AgentType, ctx.Err())
		}
		return models.AgentResult{}, fmt.Errorf("agent %s command failed: %w (stderr: %s)",
			req.AgentType, err, truncate(strings.TrimSpace(stderr.String()), 200))
	}

	return ParseResult(stdout.Bytes())
}

// ParseResult decodes an AgentResult from command output. If the output is
// not pure JSON, the outermost {...} span is extracted and decoded instead.
func ParseResult(output []byte) (models.AgentResult, error) {
	var result models.AgentResult

	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return result, fmt.Errorf("empty output from agent command")
	}

	if err := json.Unmarshal(trimmed, &result); err == nil {
		return result, nil
	}

	start := bytes.IndexByte(trimmed, '{')
	end := bytes.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return result, fmt.Errorf("no JSON object in agent output: %s", truncate(string(trimmed), 200))
	}
	if err := json.Unmarshal(trimmed[start:end+1], &result); err != nil {
		return result, fmt.Errorf("decode agent output: %w", err)
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
