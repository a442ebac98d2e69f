package executor

import (
	"strings"

	"github.com/harrison/coordinator/internal/models"
)

// MapInputs resolves a config's input mapping against the results recorded so far.
//
// A source reference is either "agent_type" (the whole result data) or
// "agent_type.field[.nested...]". When the referenced agent has no result yet,
// or the field is absent from its data, the target field is omitted rather
// than set to a zero value: absence means "not yet available".
func MapInputs(mapping map[string]string, results map[string]models.AgentResult) map[string]any {
	input := make(map[string]any, len(mapping))

	for target, source := range mapping {
		agentType, path := splitReference(source)
		result, ok := results[agentType]
		if !ok {
			continue
		}

		if path == "" {
			input[target] = result.ResultData
			continue
		}

		if value, found := lookupPath(result.ResultData, path); found {
			input[target] = value
		}
	}

	return input
}

// splitReference splits "agent.field.sub" into ("agent", "field.sub").
func splitReference(ref string) (string, string) {
	ref = strings.TrimSpace(ref)
	agentType, path, _ := strings.Cut(ref, ".")
	return agentType, path
}

// lookupPath walks a dotted path through nested result data.
func lookupPath(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
