package executor

import (
	"github.com/harrison/coordinator/internal/models"
)

// CalculateLevels partitions the plan's agent configs into ordered levels so
// that every dependency of a config in level k lies in a level before k.
//
// Each pass collects every unplaced config whose dependencies are already
// placed. A pass that places nothing while configs remain means the graph has
// a cycle (or depends on an agent the plan never declares), which is reported
// as a CircularDependencyError naming the plan's task id. Within a level the
// plan's declared order is preserved.
func CalculateLevels(plan *models.CoordinationPlan) ([]models.Level, error) {
	if plan == nil || len(plan.Agents) == 0 {
		return []models.Level{}, nil
	}

	placed := make(map[string]bool, len(plan.Agents))
	remaining := make([]models.AgentTaskConfig, len(plan.Agents))
	copy(remaining, plan.Agents)

	var levels []models.Level
	for len(remaining) > 0 {
		var current, deferred []models.AgentTaskConfig
		for _, cfg := range remaining {
			if dependenciesPlaced(cfg, placed) {
				current = append(current, cfg)
			} else {
				deferred = append(deferred, cfg)
			}
		}

		if len(current) == 0 {
			stuck := make([]string, len(deferred))
			for i, cfg := range deferred {
				stuck[i] = cfg.AgentType
			}
			return nil, &CircularDependencyError{TaskID: plan.TaskID, Agents: stuck}
		}

		// Mark placement only after the pass so a level never satisfies its own members.
		for _, cfg := range current {
			placed[cfg.AgentType] = true
		}

		levels = append(levels, models.Level{Index: len(levels), Configs: current})
		remaining = deferred
	}

	return levels, nil
}

func dependenciesPlaced(cfg models.AgentTaskConfig, placed map[string]bool) bool {
	for _, dep := range cfg.Dependencies {
		if !placed[dep] {
			return false
		}
	}
	return true
}

// missingDependencies returns the dependencies of cfg not yet completed in exec.
func missingDependencies(cfg models.AgentTaskConfig, exec *models.CoordinationExecution) []string {
	var missing []string
	for _, dep := range cfg.Dependencies {
		if !exec.IsCompleted(dep) {
			missing = append(missing, dep)
		}
	}
	return missing
}
