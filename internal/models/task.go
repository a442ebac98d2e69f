package models

import "time"

// ExecutionContext is ambient data supplied by the caller. The engine never
// modifies it; it is passed through to every agent invocation.
type ExecutionContext struct {
	WorkflowID   string         `json:"workflow_id,omitempty"`
	WorkflowType string         `json:"workflow_type,omitempty"`
	TaskID       string         `json:"task_id,omitempty"`
	Values       map[string]any `json:"values,omitempty"`
}

// Value returns the context value for key and whether it was present.
func (c ExecutionContext) Value(key string) (any, bool) {
	switch key {
	case "workflow_id":
		return c.WorkflowID, c.WorkflowID != ""
	case "workflow_type":
		return c.WorkflowType, c.WorkflowType != ""
	case "task_id":
		return c.TaskID, c.TaskID != ""
	}
	v, ok := c.Values[key]
	return v, ok
}

// AgentTaskRequest is what the engine hands to an agent invoker.
type AgentTaskRequest struct {
	AgentType  string           `json:"agent_type"`
	TaskID     string           `json:"task_id"`
	WorkflowID string           `json:"workflow_id"`
	TaskType   string           `json:"task_type"`
	InputData  map[string]any   `json:"input_data"`
	Context    ExecutionContext `json:"context"`
	Priority   int              `json:"priority"`
}

// AgentResult is the structured outcome of one agent invocation.
type AgentResult struct {
	AgentType       string         `json:"agent_type"`
	ResultData      map[string]any `json:"result_data"`
	ConfidenceScore float64        `json:"confidence_score"` // In [0,1]
	CostUnits       float64        `json:"cost_units"`
	Error           string         `json:"error,omitempty"`
	Duration        time.Duration  `json:"duration"`
}

// Failed reports whether the result carries an agent-reported error.
func (r AgentResult) Failed() bool {
	return r.Error != ""
}

// ClampConfidence keeps a confidence score inside [0,1].
func ClampConfidence(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
