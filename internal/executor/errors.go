package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExecutionPhase represents the phase of a coordination where an error occurred.
type ExecutionPhase int

const (
	// PhaseLeveling represents errors during dependency leveling.
	PhaseLeveling ExecutionPhase = iota
	// PhaseLevel represents errors collected while running a parallel level.
	PhaseLevel
	// PhaseAgent represents errors during a single agent invocation.
	PhaseAgent
	// PhaseQuality represents quality gate failures.
	PhaseQuality
)

// String returns the string representation of ExecutionPhase.
func (p ExecutionPhase) String() string {
	switch p {
	case PhaseLeveling:
		return "leveling"
	case PhaseLevel:
		return "level"
	case PhaseAgent:
		return "agent"
	case PhaseQuality:
		return "quality"
	default:
		return "unknown"
	}
}

var (
	// ErrCircularDependency is wrapped by CircularDependencyError.
	ErrCircularDependency = errors.New("circular dependency")
	// ErrUnmetDependency is wrapped by UnmetDependencyError.
	ErrUnmetDependency = errors.New("unmet dependency")
	// ErrQualityGate is wrapped by QualityGateError.
	ErrQualityGate = errors.New("quality gate failed")
)

// CircularDependencyError reports that a plan's dependency graph cannot be leveled.
type CircularDependencyError struct {
	TaskID string   // Task id of the plan being leveled
	Agents []string // Agent types that could not be placed
}

// Error implements the error interface.
func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected in plan for task %s: unresolved agents [%s]",
		e.TaskID, strings.Join(e.Agents, ", "))
}

// Unwrap returns ErrCircularDependency.
func (e *CircularDependencyError) Unwrap() error {
	return ErrCircularDependency
}

// UnmetDependencyError reports that an agent was reached before its dependencies completed.
type UnmetDependencyError struct {
	AgentType string
	Missing   []string
}

// Error implements the error interface.
func (e *UnmetDependencyError) Error() string {
	return fmt.Sprintf("agent %s: unmet dependencies [%s]", e.AgentType, strings.Join(e.Missing, ", "))
}

// Unwrap returns ErrUnmetDependency.
func (e *UnmetDependencyError) Unwrap() error {
	return ErrUnmetDependency
}

// AgentError represents a failed agent invocation.
// It includes context about which agent failed and when.
type AgentError struct {
	AgentType string    // Agent type that failed
	Message   string    // Human-readable error message
	Err       error     // Underlying error (optional)
	Timestamp time.Time // When the error occurred
}

// NewAgentError creates a new AgentError with the current timestamp.
func NewAgentError(agentType, msg string, err error) *AgentError {
	return &AgentError{
		AgentType: agentType,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for AgentError.
func (e *AgentError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("agent %s: %s", e.AgentType, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// QualityGateError reports a blocking quality gate that rejected an agent result.
type QualityGateError struct {
	AgentType string
	Gate      string
	Rule      string
}

// Error implements the error interface.
func (e *QualityGateError) Error() string {
	return fmt.Sprintf("agent %s: quality gate %q failed (%s)", e.AgentType, e.Gate, e.Rule)
}

// Unwrap returns ErrQualityGate.
func (e *QualityGateError) Unwrap() error {
	return ErrQualityGate
}

// ExecutionError aggregates multiple errors recorded during one coordination.
// It provides context about which phase failed and how many agents were affected.
type ExecutionError struct {
	Phase        ExecutionPhase // Execution phase where errors occurred
	Errors       []error        // Individual agent errors
	TotalAgents  int            // Number of agents in the plan
	FailedAgents int            // Number of agents that failed
}

// NewExecutionError creates a new ExecutionError for the given phase.
func NewExecutionError(phase ExecutionPhase, totalAgents int) *ExecutionError {
	return &ExecutionError{
		Phase:       phase,
		TotalAgents: totalAgents,
	}
}

// Add appends err and increments the failed agent count.
func (e *ExecutionError) Add(err error) {
	e.Errors = append(e.Errors, err)
	e.FailedAgents++
}

// Error implements the error interface for ExecutionError.
func (e *ExecutionError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("coordination failed in %s phase: %d/%d agents failed",
		e.Phase, e.FailedAgents, e.TotalAgents))

	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  - %s", err.Error()))
	}

	return sb.String()
}

// Unwrap returns the collected errors so errors.Is and errors.As can traverse them.
func (e *ExecutionError) Unwrap() []error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors
}

// IsAgentError checks if the error is or wraps an AgentError.
func IsAgentError(err error) bool {
	var ae *AgentError
	return errors.As(err, &ae)
}

// IsExecutionError checks if the error is or wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// IsCancellation reports whether err was caused by context cancellation or deadline.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
