package models

import (
	"errors"
	"fmt"
	"sort"
)

// CoordinationType selects the scheduling discipline for a plan.
type CoordinationType string

// Supported coordination patterns
const (
	CoordinationSequential   CoordinationType = "sequential"
	CoordinationParallel     CoordinationType = "parallel"
	CoordinationConditional  CoordinationType = "conditional"
	CoordinationFeedbackLoop CoordinationType = "feedback_loop"
)

// IsValid reports whether t names one of the four patterns.
func (t CoordinationType) IsValid() bool {
	switch t {
	case CoordinationSequential, CoordinationParallel, CoordinationConditional, CoordinationFeedbackLoop:
		return true
	default:
		return false
	}
}

// CoordinationPlan describes which agents to run for a workflow task,
// how their data flows between them and which pattern schedules them.
type CoordinationPlan struct {
	ID               string            `yaml:"id" json:"id"`                               // Plan identifier (optional)
	Name             string            `yaml:"name" json:"name"`                           // Human-readable plan name
	TaskID           string            `yaml:"task_id" json:"task_id"`                     // Workflow task being orchestrated
	WorkflowID       string            `yaml:"workflow_id" json:"workflow_id"`             // Owning workflow
	CoordinationType CoordinationType  `yaml:"coordination_type" json:"coordination_type"` // Pattern to use
	Agents           []AgentTaskConfig `yaml:"agents" json:"agents"`                       // Agent invocations in declared order
	QualityGates     []QualityGate     `yaml:"quality_gates" json:"quality_gates"`         // Checks run after each agent
	FilePath         string            `yaml:"-" json:"-"`                                 // Source file (if parsed from disk)
}

// AgentTaskConfig declares one agent invocation inside a plan.
type AgentTaskConfig struct {
	AgentType      string            `yaml:"agent_type" json:"agent_type"`
	ExecutionOrder int               `yaml:"execution_order" json:"execution_order"`
	Dependencies   []string          `yaml:"dependencies" json:"dependencies,omitempty"`
	InputMapping   map[string]string `yaml:"input_mapping" json:"input_mapping,omitempty"` // target field -> "agent" or "agent.field"
	Conditions     []string          `yaml:"conditions" json:"conditions,omitempty"`       // ANDed predicates (conditional pattern)
	TaskType       string            `yaml:"task_type" json:"task_type,omitempty"`         // Overrides the task type sent to the agent
	Priority       int               `yaml:"priority" json:"priority,omitempty"`
}

// QualityGate is a rule checked against an agent's result right after it completes.
// Rule uses the condition grammar, e.g. "valuation.confidence >= 0.8".
type QualityGate struct {
	Name      string `yaml:"name" json:"name"`
	AgentType string `yaml:"agent_type" json:"agent_type"`
	Rule      string `yaml:"rule" json:"rule"`
	Blocking  bool   `yaml:"blocking" json:"blocking"` // Record a failing gate as an agent error
}

// ErrInvalidPlan is wrapped by every structural plan validation failure.
var ErrInvalidPlan = errors.New("invalid coordination plan")

// Validate checks structural plan invariants: known pattern, non-empty and
// unique agent types. Dependencies on undeclared agents are left to the
// executors so that they surface as unmet or unresolvable dependencies.
func (p *CoordinationPlan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: plan is nil", ErrInvalidPlan)
	}
	if !p.CoordinationType.IsValid() {
		return fmt.Errorf("%w: unknown coordination type %q", ErrInvalidPlan, p.CoordinationType)
	}
	if len(p.Agents) == 0 {
		return fmt.Errorf("%w: plan has no agents", ErrInvalidPlan)
	}

	seen := make(map[string]bool, len(p.Agents))
	for i, cfg := range p.Agents {
		if cfg.AgentType == "" {
			return fmt.Errorf("%w: agent %d has empty agent_type", ErrInvalidPlan, i)
		}
		if seen[cfg.AgentType] {
			return fmt.Errorf("%w: duplicate agent_type %q", ErrInvalidPlan, cfg.AgentType)
		}
		seen[cfg.AgentType] = true
	}

	for _, gate := range p.QualityGates {
		if gate.Rule == "" {
			return fmt.Errorf("%w: quality gate %q has empty rule", ErrInvalidPlan, gate.Name)
		}
	}
	return nil
}

// HasAgent reports whether agentType is declared in the plan.
func (p *CoordinationPlan) HasAgent(agentType string) bool {
	for _, cfg := range p.Agents {
		if cfg.AgentType == agentType {
			return true
		}
	}
	return false
}

// UnknownDependencies lists dependencies that reference agent types absent from the plan.
func (p *CoordinationPlan) UnknownDependencies() map[string][]string {
	unknown := make(map[string][]string)
	for _, cfg := range p.Agents {
		for _, dep := range cfg.Dependencies {
			if !p.HasAgent(dep) {
				unknown[cfg.AgentType] = append(unknown[cfg.AgentType], dep)
			}
		}
	}
	return unknown
}

// SortedByOrder returns a copy of the agents sorted by ExecutionOrder.
// Ties keep their declared order.
func (p *CoordinationPlan) SortedByOrder() []AgentTaskConfig {
	sorted := make([]AgentTaskConfig, len(p.Agents))
	copy(sorted, p.Agents)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExecutionOrder < sorted[j].ExecutionOrder
	})
	return sorted
}

// GatesFor returns the quality gates that apply to agentType.
func (p *CoordinationPlan) GatesFor(agentType string) []QualityGate {
	var gates []QualityGate
	for _, gate := range p.QualityGates {
		if gate.AgentType == agentType {
			gates = append(gates, gate)
		}
	}
	return gates
}

// Level is a group of agent configs whose dependencies all lie in earlier levels.
type Level struct {
	Index   int               // Zero-based level index
	Configs []AgentTaskConfig // Configs in declared plan order
}

// AgentTypes returns the agent types in this level.
func (l Level) AgentTypes() []string {
	types := make([]string, len(l.Configs))
	for i, cfg := range l.Configs {
		types[i] = cfg.AgentType
	}
	return types
}
