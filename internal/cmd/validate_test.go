package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestValidatePlanFiles(t *testing.T) {
	dir := t.TempDir()
	valid := writeTestFile(t, dir, "valid.yaml", parallelPlanYAML)
	circular := writeTestFile(t, dir, "circular.yaml", circularPlanYAML)
	dangling := writeTestFile(t, dir, "dangling.md", `---
coordination_type: sequential
---
# Plan: Dangling

## Agent: valuation
- depends_on: listing
`)

	tests := []struct {
		name        string
		paths       []string
		wantErr     string
		wantOutputs []string
	}{
		{
			name:        "valid parallel plan",
			paths:       []string{valid},
			wantOutputs: []string{"✓ " + valid + ": parallel, 3 agent(s)", "Level 2: valuation, photos"},
		},
		{
			name:        "circular plan",
			paths:       []string{circular},
			wantErr:     "1 of 1 plan(s) invalid",
			wantOutputs: []string{"✗ " + circular, "circular"},
		},
		{
			name:        "unknown dependency is a warning",
			paths:       []string{dangling},
			wantOutputs: []string{"✓ " + dangling, "warning: valuation depends on listing, which is not in the plan", "1. valuation (after listing)"},
		},
		{
			name:        "mixed",
			paths:       []string{valid, circular, dangling},
			wantErr:     "1 of 3 plan(s) invalid",
			wantOutputs: []string{"✓ " + valid, "✗ " + circular, "✓ " + dangling},
		},
		{
			name:        "missing file",
			paths:       []string{dir + "/missing.yaml"},
			wantErr:     "1 of 1 plan(s) invalid",
			wantOutputs: []string{"failed to open file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := validatePlanFiles(tt.paths, &buf)

			if tt.wantErr == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
			for _, want := range tt.wantOutputs {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestValidateCommand_RequiresArgs(t *testing.T) {
	if _, err := executeCommand(t, "validate"); err == nil {
		t.Fatal("expected error without plan files")
	}
}
