package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/coordinator/internal/executor"
	"github.com/harrison/coordinator/internal/parser"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan-file>...",
		Short: "Validate one or more coordination plans",
		Long: `Parse and validate plan files, checking for:
  - Known coordination type and unique, non-empty agent types
  - Well-formed quality gate rules
  - Circular or unresolvable dependencies (parallel plans)
  - Dependencies on agents missing from the plan (reported as warnings)

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validatePlanFiles(args, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	return cmd
}

// validatePlanFiles validates every path and reports each result to output.
func validatePlanFiles(paths []string, output io.Writer) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	invalid := 0
	for _, path := range paths {
		plan, err := parser.ParseFile(path)
		if err == nil {
			err = executor.ValidatePlan(plan)
		}
		if err != nil {
			invalid++
			red.Fprintf(output, "✗ %s: %v\n", path, err)
			continue
		}

		green.Fprintf(output, "✓ %s", path)
		fmt.Fprintf(output, ": %s, %d agent(s)\n", plan.CoordinationType, len(plan.Agents))

		unknown := plan.UnknownDependencies()
		agents := make([]string, 0, len(unknown))
		for agent := range unknown {
			agents = append(agents, agent)
		}
		sort.Strings(agents)
		for _, agent := range agents {
			yellow.Fprintf(output, "  warning: %s depends on %s, which is not in the plan\n",
				agent, strings.Join(unknown[agent], ", "))
		}

		printSchedule(output, plan)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d plan(s) invalid", invalid, len(paths))
	}
	return nil
}
