package models

import (
	"errors"
	"sync"
	"time"
)

// ExecutionStatus is the lifecycle state of a coordination execution.
type ExecutionStatus string

// Execution status constants
const (
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// ErrExecutionFinished is returned when writing to an execution that has left the running state.
var ErrExecutionFinished = errors.New("coordination execution already finished")

// CoordinationExecution is the mutable record of one plan run. It is owned by
// the engine for the plan's lifetime and is safe for concurrent use by the
// sibling invocations of a parallel level.
type CoordinationExecution struct {
	ID        string
	Plan      *CoordinationPlan
	Context   ExecutionContext
	StartTime time.Time

	mu         sync.RWMutex
	status     ExecutionStatus
	endTime    time.Time
	order      []string               // agent types in first-recorded order
	results    map[string]AgentResult // latest result per agent type
	completed  map[string]bool
	errors     []error
	iterations int
	converged  bool
}

// NewCoordinationExecution creates a running execution record for plan.
func NewCoordinationExecution(id string, plan *CoordinationPlan, ctx ExecutionContext) *CoordinationExecution {
	return &CoordinationExecution{
		ID:        id,
		Plan:      plan,
		Context:   ctx,
		StartTime: time.Now(),
		status:    StatusRunning,
		results:   make(map[string]AgentResult),
		completed: make(map[string]bool),
	}
}

// RecordResult stores result as the latest entry for its agent type. An agent
// is completed only while its latest result carries no error.
func (e *CoordinationExecution) RecordResult(result AgentResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return ErrExecutionFinished
	}
	if _, exists := e.results[result.AgentType]; !exists {
		e.order = append(e.order, result.AgentType)
	}
	e.results[result.AgentType] = result
	if result.Failed() {
		delete(e.completed, result.AgentType)
	} else {
		e.completed[result.AgentType] = true
	}
	return nil
}

// RecordError appends err to the execution's error list.
func (e *CoordinationExecution) RecordError(err error) error {
	if err == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return ErrExecutionFinished
	}
	e.errors = append(e.errors, err)
	return nil
}

// SetIterations records feedback-loop progress.
func (e *CoordinationExecution) SetIterations(iterations int, converged bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return
	}
	e.iterations = iterations
	e.converged = converged
}

// Iterations returns the number of feedback passes run and whether they converged.
func (e *CoordinationExecution) Iterations() (int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.iterations, e.converged
}

// IsCompleted reports whether agentType has a recorded non-error result.
func (e *CoordinationExecution) IsCompleted(agentType string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.completed[agentType]
}

// Result returns the latest result for agentType.
func (e *CoordinationExecution) Result(agentType string) (AgentResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.results[agentType]
	return r, ok
}

// Results returns a snapshot of the recorded results in first-recorded order.
func (e *CoordinationExecution) Results() []AgentResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]AgentResult, 0, len(e.order))
	for _, agentType := range e.order {
		out = append(out, e.results[agentType])
	}
	return out
}

// ResultMap returns a snapshot of the latest result per agent type.
func (e *CoordinationExecution) ResultMap() map[string]AgentResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]AgentResult, len(e.results))
	for k, v := range e.results {
		out[k] = v
	}
	return out
}

// CompletedAgents returns the completed agent types in first-recorded order.
func (e *CoordinationExecution) CompletedAgents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []string
	for _, agentType := range e.order {
		if e.completed[agentType] {
			out = append(out, agentType)
		}
	}
	return out
}

// Errors returns a copy of the recorded errors.
func (e *CoordinationExecution) Errors() []error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]error, len(e.errors))
	copy(out, e.errors)
	return out
}

// Status returns the current lifecycle state.
func (e *CoordinationExecution) Status() ExecutionStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// EndTime returns when the execution finished (zero while running).
func (e *CoordinationExecution) EndTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.endTime
}

// Finish moves the execution to a terminal status. Later writes are rejected.
func (e *CoordinationExecution) Finish(status ExecutionStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != StatusRunning {
		return
	}
	e.status = status
	e.endTime = time.Now()
}
