package executor

import (
	"github.com/harrison/coordinator/internal/models"
)

// QualityChecker decides whether a quality gate passes for the results
// recorded so far (including the agent result that triggered the check).
// A non-nil error means the gate could not be evaluated; it counts as a failure.
type QualityChecker interface {
	Check(gate models.QualityGate, results map[string]models.AgentResult, execCtx models.ExecutionContext) (bool, error)
}

// QualityCheckerFunc adapts a function to the QualityChecker interface.
type QualityCheckerFunc func(gate models.QualityGate, results map[string]models.AgentResult, execCtx models.ExecutionContext) (bool, error)

// Check calls f.
func (f QualityCheckerFunc) Check(gate models.QualityGate, results map[string]models.AgentResult, execCtx models.ExecutionContext) (bool, error) {
	return f(gate, results, execCtx)
}

// RuleChecker evaluates a gate's Rule with the condition grammar.
type RuleChecker struct{}

// Check parses and evaluates gate.Rule.
func (RuleChecker) Check(gate models.QualityGate, results map[string]models.AgentResult, execCtx models.ExecutionContext) (bool, error) {
	pred, err := ParsePredicate(gate.Rule)
	if err != nil {
		return false, err
	}
	return pred.Evaluate(results, execCtx), nil
}
