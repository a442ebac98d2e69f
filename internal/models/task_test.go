package models

import "testing"

func TestExecutionContext_Value(t *testing.T) {
	ctx := ExecutionContext{
		WorkflowID:   "wf-1",
		WorkflowType: "intake",
		Values:       map[string]any{"tier": 2, "task_id": "shadowed"},
	}

	tests := []struct {
		key    string
		want   any
		wantOK bool
	}{
		{"workflow_id", "wf-1", true},
		{"workflow_type", "intake", true},
		{"task_id", "", false},
		{"tier", 2, true},
		{"missing", nil, false},
	}

	for _, tt := range tests {
		got, ok := ctx.Value(tt.key)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Value(%q) = (%v, %v), want (%v, %v)", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	tests := map[float64]float64{-0.5: 0, 0: 0, 0.42: 0.42, 1: 1, 3: 1}
	for in, want := range tests {
		if got := ClampConfidence(in); got != want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestAgentResult_Failed(t *testing.T) {
	if (AgentResult{}).Failed() {
		t.Error("empty result should not be failed")
	}
	if !(AgentResult{Error: "boom"}).Failed() {
		t.Error("result with error should be failed")
	}
}
