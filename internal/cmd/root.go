package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for coordinator
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Multi-agent coordination engine",
		Long: `Coordinator runs coordination plans: it invokes a set of remote agents
for one workflow task using a sequential, parallel, conditional or
feedback-loop pattern, routes data between them and reports a single
aggregated result.

Plans are Markdown, YAML or JSON files. Agent endpoints (webhook URLs or
local commands) are configured in .coordinator/config.yaml.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewHandoffCommand())
	cmd.AddCommand(NewCollaborateCommand())

	return cmd
}
