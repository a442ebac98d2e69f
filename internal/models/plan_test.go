package models

import (
	"errors"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestCoordinationType_IsValid(t *testing.T) {
	for _, ct := range []CoordinationType{CoordinationSequential, CoordinationParallel, CoordinationConditional, CoordinationFeedbackLoop} {
		if !ct.IsValid() {
			t.Errorf("%q should be valid", ct)
		}
	}
	for _, ct := range []CoordinationType{"", "Parallel", "round_robin"} {
		if ct.IsValid() {
			t.Errorf("%q should be invalid", ct)
		}
	}
}

func TestCoordinationPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    *CoordinationPlan
		wantErr bool
	}{
		{
			name: "valid sequential plan",
			plan: &CoordinationPlan{
				CoordinationType: CoordinationSequential,
				Agents:           []AgentTaskConfig{{AgentType: "a"}, {AgentType: "b", Dependencies: []string{"a"}}},
			},
		},
		{
			name: "dependency on undeclared agent is left to the executor",
			plan: &CoordinationPlan{
				CoordinationType: CoordinationConditional,
				Agents:           []AgentTaskConfig{{AgentType: "a", Dependencies: []string{"ghost"}}},
			},
		},
		{name: "nil plan", plan: nil, wantErr: true},
		{
			name:    "unknown type",
			plan:    &CoordinationPlan{CoordinationType: "broadcast", Agents: []AgentTaskConfig{{AgentType: "a"}}},
			wantErr: true,
		},
		{
			name:    "no agents",
			plan:    &CoordinationPlan{CoordinationType: CoordinationParallel},
			wantErr: true,
		},
		{
			name:    "empty agent type",
			plan:    &CoordinationPlan{CoordinationType: CoordinationParallel, Agents: []AgentTaskConfig{{AgentType: ""}}},
			wantErr: true,
		},
		{
			name: "duplicate agent type",
			plan: &CoordinationPlan{
				CoordinationType: CoordinationParallel,
				Agents:           []AgentTaskConfig{{AgentType: "a"}, {AgentType: "a"}},
			},
			wantErr: true,
		},
		{
			name: "gate without rule",
			plan: &CoordinationPlan{
				CoordinationType: CoordinationSequential,
				Agents:           []AgentTaskConfig{{AgentType: "a"}},
				QualityGates:     []QualityGate{{Name: "g", AgentType: "a"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("error should wrap ErrInvalidPlan, got %v", err)
			}
		})
	}
}

func TestCoordinationPlan_Helpers(t *testing.T) {
	plan := &CoordinationPlan{
		CoordinationType: CoordinationSequential,
		Agents: []AgentTaskConfig{
			{AgentType: "review", ExecutionOrder: 3, Dependencies: []string{"draft", "legal"}},
			{AgentType: "draft", ExecutionOrder: 1},
			{AgentType: "style", ExecutionOrder: 3},
			{AgentType: "outline", ExecutionOrder: 0, Dependencies: []string{"brief"}},
		},
		QualityGates: []QualityGate{
			{Name: "conf", AgentType: "draft", Rule: "draft.confidence >= 0.5"},
			{Name: "cost", AgentType: "review", Rule: "review.cost < 10"},
			{Name: "conf2", AgentType: "draft", Rule: "draft.confidence < 1"},
		},
	}

	if !plan.HasAgent("draft") || plan.HasAgent("legal") {
		t.Error("HasAgent returned wrong answer")
	}

	wantUnknown := map[string][]string{"review": {"legal"}, "outline": {"brief"}}
	if got := plan.UnknownDependencies(); !reflect.DeepEqual(got, wantUnknown) {
		t.Errorf("UnknownDependencies() = %v, want %v", got, wantUnknown)
	}

	var order []string
	for _, cfg := range plan.SortedByOrder() {
		order = append(order, cfg.AgentType)
	}
	if want := []string{"outline", "draft", "review", "style"}; !reflect.DeepEqual(order, want) {
		t.Errorf("SortedByOrder() = %v, want %v", order, want)
	}
	if plan.Agents[0].AgentType != "review" {
		t.Error("SortedByOrder must not reorder the plan itself")
	}

	if gates := plan.GatesFor("draft"); len(gates) != 2 || gates[0].Name != "conf" || gates[1].Name != "conf2" {
		t.Errorf("GatesFor(draft) = %+v", gates)
	}
	if gates := plan.GatesFor("style"); gates != nil {
		t.Errorf("GatesFor(style) = %+v, want nil", gates)
	}
}

func TestCoordinationPlan_YAMLDecode(t *testing.T) {
	input := `
name: Intake
task_id: t-1
coordination_type: parallel
agents:
  - agent_type: listing
    execution_order: 1
  - agent_type: valuation
    dependencies: [listing]
    input_mapping:
      address: listing.address
    task_type: appraise
quality_gates:
  - name: confident
    agent_type: valuation
    rule: valuation.confidence >= 0.7
    blocking: true
`
	var plan CoordinationPlan
	if err := yaml.Unmarshal([]byte(input), &plan); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if plan.CoordinationType != CoordinationParallel || len(plan.Agents) != 2 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	val := plan.Agents[1]
	if val.InputMapping["address"] != "listing.address" || val.TaskType != "appraise" {
		t.Errorf("unexpected agent config: %+v", val)
	}
	if len(plan.QualityGates) != 1 || !plan.QualityGates[0].Blocking {
		t.Errorf("unexpected gates: %+v", plan.QualityGates)
	}
}

func TestLevel_AgentTypes(t *testing.T) {
	level := Level{Index: 1, Configs: []AgentTaskConfig{{AgentType: "b"}, {AgentType: "c"}}}
	if got := level.AgentTypes(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("AgentTypes() = %v", got)
	}
}
