package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrison/coordinator/internal/events"
	"github.com/harrison/coordinator/internal/models"
)

// DefaultTaskType is sent to agents when neither the config nor the context names one.
const DefaultTaskType = "coordinated_task"

// AgentInvoker executes one remote agent task. Implementations own retries,
// load balancing and the per-call timeout; any returned error is final for
// that attempt.
type AgentInvoker interface {
	Invoke(ctx context.Context, req models.AgentTaskRequest) (models.AgentResult, error)
}

// InvokerFunc adapts a function to the AgentInvoker interface.
type InvokerFunc func(ctx context.Context, req models.AgentTaskRequest) (models.AgentResult, error)

// Invoke calls f(ctx, req).
func (f InvokerFunc) Invoke(ctx context.Context, req models.AgentTaskRequest) (models.AgentResult, error) {
	return f(ctx, req)
}

// Logger is the leveled logging surface the engine writes diagnostics to.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// agentRunner performs single invocations on behalf of the pattern executors,
// the handoff coordinator and the collaboration coordinator.
type agentRunner struct {
	invoker AgentInvoker
	emitter events.Emitter
	quality QualityChecker
	logger  Logger
}

func (r *agentRunner) logf(level string, format string, args ...any) {
	if r.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch level {
	case "debug":
		r.logger.LogDebug(msg)
	case "warn":
		r.logger.LogWarn(msg)
	case "error":
		r.logger.LogError(msg)
	default:
		r.logger.LogInfo(msg)
	}
}

// invoke runs one request and emits agent_started plus agent_completed or
// agent_failed. An agent-reported error in the result is treated as a failure.
func (r *agentRunner) invoke(ctx context.Context, executionID string, req models.AgentTaskRequest, iteration int) (models.AgentResult, error) {
	r.emitter.Emit(events.New(executionID, req.AgentType, req.TaskID, req.WorkflowID,
		events.AgentStartedPayload{TaskType: req.TaskType, Iteration: iteration}))

	if err := ctx.Err(); err != nil {
		r.emitter.Emit(events.New(executionID, req.AgentType, req.TaskID, req.WorkflowID,
			events.AgentFailedPayload{Error: err.Error()}))
		return models.AgentResult{}, NewAgentError(req.AgentType, "not started", err)
	}

	start := time.Now()
	result, err := r.invoker.Invoke(ctx, req)
	elapsed := time.Since(start)

	if err == nil && result.Failed() {
		err = errors.New(result.Error)
	}
	if err != nil {
		r.emitter.Emit(events.New(executionID, req.AgentType, req.TaskID, req.WorkflowID,
			events.AgentFailedPayload{Error: err.Error(), Duration: elapsed}))
		r.logf("warn", "Agent %s failed after %s: %v", req.AgentType, elapsed.Round(time.Millisecond), err)
		return models.AgentResult{}, NewAgentError(req.AgentType, "invocation failed", err)
	}

	result.AgentType = req.AgentType
	result.ConfidenceScore = models.ClampConfidence(result.ConfidenceScore)
	if result.Duration == 0 {
		result.Duration = elapsed
	}
	if result.ResultData == nil {
		result.ResultData = map[string]any{}
	}

	r.emitter.Emit(events.New(executionID, req.AgentType, req.TaskID, req.WorkflowID,
		events.AgentCompletedPayload{
			ConfidenceScore: result.ConfidenceScore,
			CostUnits:       result.CostUnits,
			Duration:        result.Duration,
			Iteration:       iteration,
		}))
	r.logf("debug", "Agent %s completed (confidence %.2f, cost %.2f)", req.AgentType, result.ConfidenceScore, result.CostUnits)

	return result, nil
}

// run executes cfg inside exec: build the request, invoke, run quality gates
// and record the result. A blocking gate failure is recorded on the result so
// the agent never enters the completed set.
func (r *agentRunner) run(ctx context.Context, exec *models.CoordinationExecution, cfg models.AgentTaskConfig, input map[string]any, iteration int) (models.AgentResult, error) {
	req := buildRequest(exec, cfg, input)

	result, err := r.invoke(ctx, exec.ID, req, iteration)
	if err != nil {
		return models.AgentResult{}, err
	}

	gateErr := r.checkGates(exec, result)
	if gateErr != nil {
		result.Error = gateErr.Error()
	}

	if err := exec.RecordResult(result); err != nil {
		return result, NewAgentError(cfg.AgentType, "record result", err)
	}
	return result, gateErr
}

func (r *agentRunner) checkGates(exec *models.CoordinationExecution, result models.AgentResult) error {
	gates := exec.Plan.GatesFor(result.AgentType)
	if len(gates) == 0 || r.quality == nil {
		return nil
	}

	results := exec.ResultMap()
	results[result.AgentType] = result

	var blocking error
	for _, gate := range gates {
		passed, err := r.quality.Check(gate, results, exec.Context)
		if err != nil {
			r.logf("warn", "Quality gate %q for %s could not be evaluated: %v", gate.Name, result.AgentType, err)
		}
		if passed {
			continue
		}

		r.emitter.Emit(events.New(exec.ID, result.AgentType, exec.Plan.TaskID, exec.Plan.WorkflowID,
			events.QualityGateFailedPayload{Gate: gate.Name, Rule: gate.Rule, Blocking: gate.Blocking}))
		r.logf("warn", "Quality gate %q failed for %s (%s)", gate.Name, result.AgentType, gate.Rule)

		if gate.Blocking && blocking == nil {
			blocking = &QualityGateError{AgentType: result.AgentType, Gate: gate.Name, Rule: gate.Rule}
		}
	}
	return blocking
}

func buildRequest(exec *models.CoordinationExecution, cfg models.AgentTaskConfig, input map[string]any) models.AgentTaskRequest {
	taskID := exec.Plan.TaskID
	if taskID == "" {
		taskID = exec.Context.TaskID
	}
	workflowID := exec.Plan.WorkflowID
	if workflowID == "" {
		workflowID = exec.Context.WorkflowID
	}

	taskType := cfg.TaskType
	if taskType == "" {
		taskType = exec.Context.WorkflowType
	}
	if taskType == "" {
		taskType = DefaultTaskType
	}

	return models.AgentTaskRequest{
		AgentType:  cfg.AgentType,
		TaskID:     taskID,
		WorkflowID: workflowID,
		TaskType:   taskType,
		InputData:  input,
		Context:    exec.Context,
		Priority:   cfg.Priority,
	}
}
