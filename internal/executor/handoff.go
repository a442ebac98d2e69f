package executor

import (
	"context"
	"fmt"

	"github.com/harrison/coordinator/internal/events"
	"github.com/harrison/coordinator/internal/models"
)

// HandoffRequest transfers an in-flight task from one agent type to another.
type HandoffRequest struct {
	FromAgent   string         `json:"from_agent"`
	ToAgent     string         `json:"to_agent"`
	TaskID      string         `json:"task_id"`
	WorkflowID  string         `json:"workflow_id"`
	Reason      string         `json:"handoff_reason"`
	HandoffData map[string]any `json:"handoff_data"`
	ContextData map[string]any `json:"context_data"`
}

// Validate checks that a HandoffRequest names both agents and a reason.
func (h HandoffRequest) Validate() error {
	if h.FromAgent == "" {
		return fmt.Errorf("from_agent: %w", errNoAgent)
	}
	if h.ToAgent == "" {
		return fmt.Errorf("to_agent: %w", errNoAgent)
	}
	if h.Reason == "" {
		return fmt.Errorf("handoff_reason is required")
	}
	return nil
}

// Handoff invokes req.ToAgent once with the handoff data as input and the
// reason as task type, returning its result directly. It does not create a
// coordination execution.
func (e *Engine) Handoff(ctx context.Context, req HandoffRequest) (models.AgentResult, error) {
	if err := req.Validate(); err != nil {
		return models.AgentResult{}, err
	}

	e.runner.emitter.Emit(events.New("", req.FromAgent, req.TaskID, req.WorkflowID,
		events.HandoffInitiatedPayload{FromAgent: req.FromAgent, ToAgent: req.ToAgent, Reason: req.Reason}))
	e.runner.logf("info", "Handoff %s -> %s (%s)", req.FromAgent, req.ToAgent, req.Reason)

	input := req.HandoffData
	if input == nil {
		input = map[string]any{}
	}

	taskReq := models.AgentTaskRequest{
		AgentType:  req.ToAgent,
		TaskID:     req.TaskID,
		WorkflowID: req.WorkflowID,
		TaskType:   req.Reason,
		InputData:  input,
		Context: models.ExecutionContext{
			WorkflowID: req.WorkflowID,
			TaskID:     req.TaskID,
			Values:     req.ContextData,
		},
	}

	return e.runner.invoke(ctx, "", taskReq, 0)
}
