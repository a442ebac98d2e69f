package executor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/coordinator/internal/models"
)

// CollaborationRequest runs a primary agent and then has supporting agents review its output.
type CollaborationRequest struct {
	PrimaryAgent      string         `json:"primary_agent"`
	SupportingAgents  []string       `json:"supporting_agents"`
	TaskID            string         `json:"task_id"`
	WorkflowID        string         `json:"workflow_id"`
	CollaborationType string         `json:"collaboration_type"`
	CollaborationData map[string]any `json:"collaboration_data"`
}

// CollaborationResult holds [primary, supporting...] in request order. A
// supporting agent that failed is present in its slot with Error set.
type CollaborationResult struct {
	Results []models.AgentResult `json:"results"`
}

// Primary returns the primary agent's result.
func (c *CollaborationResult) Primary() models.AgentResult {
	if c == nil || len(c.Results) == 0 {
		return models.AgentResult{}
	}
	return c.Results[0]
}

// Reviews returns the supporting agents' results in request order.
func (c *CollaborationResult) Reviews() []models.AgentResult {
	if c == nil || len(c.Results) < 2 {
		return nil
	}
	return c.Results[1:]
}

// Collaborate invokes the primary agent synchronously, then every supporting
// agent concurrently with {primary_result, original_data} as input and
// "<collaboration_type>_review" as task type. A primary failure is returned
// immediately. Supporting failures do not affect their siblings; they are
// joined into the returned error alongside the complete result.
func (e *Engine) Collaborate(ctx context.Context, req CollaborationRequest) (*CollaborationResult, error) {
	if req.PrimaryAgent == "" {
		return nil, fmt.Errorf("primary_agent: %w", errNoAgent)
	}

	execCtx := models.ExecutionContext{WorkflowID: req.WorkflowID, TaskID: req.TaskID}
	primary, err := e.runner.invoke(ctx, "", models.AgentTaskRequest{
		AgentType:  req.PrimaryAgent,
		TaskID:     req.TaskID,
		WorkflowID: req.WorkflowID,
		TaskType:   req.CollaborationType,
		InputData:  req.CollaborationData,
		Context:    execCtx,
	}, 0)
	if err != nil {
		return nil, err
	}

	results := make([]models.AgentResult, 1+len(req.SupportingAgents))
	results[0] = primary
	errs := make([]error, len(req.SupportingAgents))

	reviewType := req.CollaborationType + "_review"
	var g errgroup.Group
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}
	for i, agentType := range req.SupportingAgents {
		g.Go(func() error {
			res, err := e.runner.invoke(ctx, "", models.AgentTaskRequest{
				AgentType:  agentType,
				TaskID:     req.TaskID,
				WorkflowID: req.WorkflowID,
				TaskType:   reviewType,
				InputData: map[string]any{
					"primary_result": primary.ResultData,
					"original_data":  req.CollaborationData,
				},
				Context: execCtx,
			}, 0)
			if err != nil {
				res = models.AgentResult{AgentType: agentType, Error: err.Error()}
				errs[i] = err
			}
			results[i+1] = res
			return nil
		})
	}
	_ = g.Wait()

	return &CollaborationResult{Results: results}, errors.Join(errs...)
}
