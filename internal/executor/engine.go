package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/coordinator/internal/events"
	"github.com/harrison/coordinator/internal/models"
)

// Engine selects the pattern executor for a plan, owns the plan's execution
// record and emits lifecycle events. It is safe for concurrent use; every
// Execute call gets its own execution record.
type Engine struct {
	runner               *agentRunner
	maxConcurrency       int
	maxIterations        int
	convergenceThreshold float64
	newID                func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmitter sets the event emitter. Defaults to events.NopEmitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(e *Engine) {
		if emitter != nil {
			e.runner.emitter = emitter
		}
	}
}

// WithLogger sets the diagnostic logger. A nil logger disables logging.
func WithLogger(logger Logger) Option {
	return func(e *Engine) { e.runner.logger = logger }
}

// WithQualityChecker replaces the default RuleChecker used for quality gates.
func WithQualityChecker(checker QualityChecker) Option {
	return func(e *Engine) { e.runner.quality = checker }
}

// WithMaxConcurrency bounds concurrent invocations within a parallel level (0 = unlimited).
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) { e.maxConcurrency = n }
}

// WithFeedbackLimits sets the feedback-loop iteration cap (clamped to
// MaxFeedbackIterations) and convergence threshold.
func WithFeedbackLimits(maxIterations int, threshold float64) Option {
	return func(e *Engine) {
		e.maxIterations = maxIterations
		e.convergenceThreshold = threshold
	}
}

// WithIDGenerator overrides execution id generation (uuid by default).
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// NewEngine constructs an Engine that reaches agents through invoker.
func NewEngine(invoker AgentInvoker, opts ...Option) *Engine {
	if invoker == nil {
		panic("agent invoker cannot be nil")
	}

	e := &Engine{
		runner: &agentRunner{
			invoker: invoker,
			emitter: events.NopEmitter{},
			quality: RuleChecker{},
		},
		maxIterations:        MaxFeedbackIterations,
		convergenceThreshold: DefaultConvergenceThreshold,
		newID:                uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutorFor returns the pattern executor for t.
func (e *Engine) ExecutorFor(t models.CoordinationType) (PatternExecutor, error) {
	switch t {
	case models.CoordinationSequential:
		return &SequentialExecutor{runner: e.runner}, nil
	case models.CoordinationParallel:
		return &ParallelExecutor{runner: e.runner, maxConcurrency: e.maxConcurrency}, nil
	case models.CoordinationConditional:
		return &ConditionalExecutor{runner: e.runner}, nil
	case models.CoordinationFeedbackLoop:
		return &FeedbackLoopExecutor{runner: e.runner, maxIterations: e.maxIterations, threshold: e.convergenceThreshold}, nil
	default:
		return nil, fmt.Errorf("%w: unknown coordination type %q", models.ErrInvalidPlan, t)
	}
}

// ValidatePlan checks a plan without running it: structure, quality gate
// rules and, for the parallel pattern, that the dependency graph levels.
func ValidatePlan(plan *models.CoordinationPlan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	for _, gate := range plan.QualityGates {
		if _, err := ParsePredicate(gate.Rule); err != nil {
			return fmt.Errorf("%w: quality gate %q: %v", models.ErrInvalidPlan, gate.Name, err)
		}
	}
	if plan.CoordinationType == models.CoordinationParallel {
		if _, err := CalculateLevels(plan); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs plan to completion. Invalid plans and circular dependencies are
// rejected before any execution record exists or any agent is invoked. When
// the chosen executor fails, the execution is marked failed and the error is
// returned together with the (failed) result; the error is never downgraded.
func (e *Engine) Execute(ctx context.Context, plan *models.CoordinationPlan, execCtx models.ExecutionContext) (*models.CoordinationResult, error) {
	if err := ValidatePlan(plan); err != nil {
		e.runner.logf("error", "Plan rejected: %v", err)
		return nil, err
	}

	patternExec, err := e.ExecutorFor(plan.CoordinationType)
	if err != nil {
		return nil, err
	}

	exec := models.NewCoordinationExecution(e.newID(), plan, execCtx)
	e.runner.emitter.Emit(events.New(exec.ID, "", plan.TaskID, plan.WorkflowID,
		events.CoordinationStartedPayload{CoordinationType: plan.CoordinationType, AgentCount: len(plan.Agents)}))
	e.runner.logf("info", "Coordination %s started: %s pattern, %d agents", exec.ID, plan.CoordinationType, len(plan.Agents))

	runErr := patternExec.Execute(ctx, exec)

	// Parallel failures are already recorded per agent; everything else is recorded here.
	if runErr != nil && !IsExecutionError(runErr) {
		if recErr := exec.RecordError(runErr); recErr != nil {
			e.runner.logf("error", "record error: %v", recErr)
		}
	}

	status := models.StatusCompleted
	if runErr != nil {
		status = models.StatusFailed
	}
	exec.Finish(status)
	result := models.NewCoordinationResult(exec)

	payload := events.CoordinationFinishedPayload{Result: result}
	if runErr != nil {
		payload.Error = runErr.Error()
		e.runner.logf("error", "Coordination %s failed after %s: %v", exec.ID, result.Elapsed.Round(time.Millisecond), runErr)
	} else {
		e.runner.logf("info", "Coordination %s completed in %s", exec.ID, result.Elapsed.Round(time.Millisecond))
	}
	e.runner.emitter.Emit(events.New(exec.ID, "", plan.TaskID, plan.WorkflowID, payload))

	return result, runErr
}

// errNoAgent is returned by the one-shot coordinators when a required agent type is empty.
var errNoAgent = errors.New("agent type is required")
