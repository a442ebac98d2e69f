package models

import "time"

// CoordinationResult is the terminal summary of a plan run. It is derived
// from a finished CoordinationExecution and never mutated afterwards.
type CoordinationResult struct {
	ID                string          `json:"id"`
	PlanID            string          `json:"plan_id,omitempty"`
	TaskID            string          `json:"task_id,omitempty"`
	WorkflowID        string          `json:"workflow_id,omitempty"`
	CoordinationType  string          `json:"coordination_type"`
	Status            ExecutionStatus `json:"status"`
	AgentResults      []AgentResult   `json:"agent_results"`
	CompletedAgents   []string        `json:"completed_agents"`
	Errors            []string        `json:"errors,omitempty"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	Elapsed           time.Duration   `json:"elapsed"`
	TotalCost         float64         `json:"total_cost"`
	AverageConfidence float64         `json:"average_confidence"`
	Iterations        int             `json:"iterations,omitempty"` // Feedback-loop passes run
	Converged         bool            `json:"converged,omitempty"`
}

// NewCoordinationResult summarises exec. Total cost covers every recorded
// result. Average confidence covers only results without an error and is 0
// when there are none.
func NewCoordinationResult(exec *CoordinationExecution) *CoordinationResult {
	results := exec.Results()
	errs := exec.Errors()
	iterations, converged := exec.Iterations()

	end := exec.EndTime()
	if end.IsZero() {
		end = time.Now()
	}

	res := &CoordinationResult{
		ID:              exec.ID,
		Status:          exec.Status(),
		AgentResults:    results,
		CompletedAgents: exec.CompletedAgents(),
		StartTime:       exec.StartTime,
		EndTime:         end,
		Elapsed:         end.Sub(exec.StartTime),
		Iterations:      iterations,
		Converged:       converged,
	}
	if exec.Plan != nil {
		res.PlanID = exec.Plan.ID
		res.TaskID = exec.Plan.TaskID
		res.WorkflowID = exec.Plan.WorkflowID
		res.CoordinationType = string(exec.Plan.CoordinationType)
	}

	for _, err := range errs {
		res.Errors = append(res.Errors, err.Error())
	}

	var confidenceSum float64
	var scored int
	for _, r := range results {
		res.TotalCost += r.CostUnits
		if r.Failed() {
			continue
		}
		confidenceSum += r.ConfidenceScore
		scored++
	}
	if scored > 0 {
		res.AverageConfidence = confidenceSum / float64(scored)
	}

	return res
}

// FailedAgents returns the agent results that carry an error.
func (r *CoordinationResult) FailedAgents() []AgentResult {
	var failed []AgentResult
	for _, ar := range r.AgentResults {
		if ar.Failed() {
			failed = append(failed, ar)
		}
	}
	return failed
}
