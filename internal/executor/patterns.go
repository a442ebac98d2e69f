package executor

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/coordinator/internal/models"
)

const (
	// MaxFeedbackIterations is the hard cap on feedback-loop passes.
	MaxFeedbackIterations = 5
	// DefaultConvergenceThreshold is the confidence delta at or below which an agent counts as unchanged.
	DefaultConvergenceThreshold = 0.1
	// IterationInputKey carries the 1-based pass number into feedback-loop agent input.
	IterationInputKey = "iteration"
)

// PatternExecutor drives a coordination execution to completion following one
// scheduling discipline. Executors mutate exec and return the fatal error, if
// any; they never swallow an error silently.
type PatternExecutor interface {
	Execute(ctx context.Context, exec *models.CoordinationExecution) error
}

// SequentialExecutor runs agents one at a time in ascending execution order.
// An unmet dependency or agent failure aborts the remaining agents.
type SequentialExecutor struct {
	runner *agentRunner
}

// Execute implements PatternExecutor.
func (s *SequentialExecutor) Execute(ctx context.Context, exec *models.CoordinationExecution) error {
	for _, cfg := range exec.Plan.SortedByOrder() {
		if err := runStep(ctx, s.runner, exec, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ConditionalExecutor runs agents in declared order, skipping any whose
// conditions do not hold. Skipped agents never enter the completed set.
type ConditionalExecutor struct {
	runner *agentRunner
}

// Execute implements PatternExecutor.
func (c *ConditionalExecutor) Execute(ctx context.Context, exec *models.CoordinationExecution) error {
	for _, cfg := range exec.Plan.Agents {
		if len(cfg.Conditions) > 0 {
			ok, err := EvaluateConditions(cfg.Conditions, exec.ResultMap(), exec.Context)
			if err != nil {
				c.runner.logf("warn", "Agent %s: malformed condition treated as false: %v", cfg.AgentType, err)
			}
			if !ok {
				c.runner.logf("info", "Skipping agent %s: conditions not met", cfg.AgentType)
				continue
			}
		}

		if err := runStep(ctx, c.runner, exec, cfg); err != nil {
			return err
		}
	}
	return nil
}

// runStep checks dependencies, maps inputs and invokes one agent. Shared by
// the sequential and conditional patterns.
func runStep(ctx context.Context, runner *agentRunner, exec *models.CoordinationExecution, cfg models.AgentTaskConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if missing := missingDependencies(cfg, exec); len(missing) > 0 {
		return &UnmetDependencyError{AgentType: cfg.AgentType, Missing: missing}
	}

	input := MapInputs(cfg.InputMapping, exec.ResultMap())
	_, err := runner.run(ctx, exec, cfg, input, 0)
	return err
}

// ParallelExecutor levels the plan by dependencies and runs every agent of a
// level concurrently. A level always settles completely before the next one
// starts; a failed agent does not stop its siblings.
type ParallelExecutor struct {
	runner         *agentRunner
	maxConcurrency int // 0 = unlimited
}

// Execute implements PatternExecutor. Per-agent failures are recorded on exec
// as they happen and returned together as an ExecutionError once every level
// has run.
func (p *ParallelExecutor) Execute(ctx context.Context, exec *models.CoordinationExecution) error {
	levels, err := CalculateLevels(exec.Plan)
	if err != nil {
		return err
	}

	failures := NewExecutionError(PhaseLevel, len(exec.Plan.Agents))
	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.runner.logf("info", "Starting level %d: %d agents", level.Index+1, len(level.Configs))
		for _, err := range p.executeLevel(ctx, exec, level) {
			failures.Add(err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(failures.Errors) > 0 {
		return failures
	}
	return nil
}

func (p *ParallelExecutor) executeLevel(ctx context.Context, exec *models.CoordinationExecution, level models.Level) []error {
	var g errgroup.Group
	if p.maxConcurrency > 0 {
		g.SetLimit(p.maxConcurrency)
	}

	// Snapshot before launching so siblings see exactly the earlier levels' results.
	results := exec.ResultMap()
	errs := make([]error, len(level.Configs))

	for i, cfg := range level.Configs {
		if missing := missingDependencies(cfg, exec); len(missing) > 0 {
			errs[i] = &UnmetDependencyError{AgentType: cfg.AgentType, Missing: missing}
			continue
		}

		input := MapInputs(cfg.InputMapping, results)
		g.Go(func() error {
			if _, err := p.runner.run(ctx, exec, cfg, input, 0); err != nil {
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if recErr := exec.RecordError(err); recErr != nil {
			p.runner.logf("error", "record error: %v", recErr)
		}
		failed = append(failed, err)
	}
	return failed
}

// FeedbackLoopExecutor reruns every agent until no agent's confidence moves
// by more than the threshold between passes, or the iteration cap is hit.
// Reaching the cap is a normal outcome, not an error.
type FeedbackLoopExecutor struct {
	runner        *agentRunner
	maxIterations int
	threshold     float64
}

// Execute implements PatternExecutor.
func (f *FeedbackLoopExecutor) Execute(ctx context.Context, exec *models.CoordinationExecution) error {
	maxIterations := f.maxIterations
	if maxIterations <= 0 || maxIterations > MaxFeedbackIterations {
		maxIterations = MaxFeedbackIterations
	}
	threshold := f.threshold
	if threshold <= 0 {
		threshold = DefaultConvergenceThreshold
	}

	configs := exec.Plan.SortedByOrder()
	previous := make(map[string]float64, len(configs))

	for iteration := 1; iteration <= maxIterations; iteration++ {
		changed := false

		for _, cfg := range configs {
			if err := ctx.Err(); err != nil {
				return err
			}

			input := MapInputs(cfg.InputMapping, exec.ResultMap())
			input[IterationInputKey] = iteration

			result, err := f.runner.run(ctx, exec, cfg, input, iteration)
			if err != nil {
				return fmt.Errorf("feedback iteration %d: %w", iteration, err)
			}

			prev, seen := previous[cfg.AgentType]
			if !seen || math.Abs(result.ConfidenceScore-prev) > threshold {
				changed = true
			}
			previous[cfg.AgentType] = result.ConfidenceScore
		}

		exec.SetIterations(iteration, !changed)
		if !changed {
			f.runner.logf("info", "Feedback loop converged after %d iterations", iteration)
			return nil
		}
	}

	f.runner.logf("info", "Feedback loop reached %d iterations without converging", maxIterations)
	return nil
}
