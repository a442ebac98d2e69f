package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/coordinator/internal/history"
	"github.com/harrison/coordinator/internal/models"
)

// NewHistoryCommand creates the 'coordinator history' command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past coordinations",
		Long: `List coordinations recorded in the history database, newest first.

Subcommands show a single run with its agent results and events, or
aggregate statistics for one agent type across all runs.`,
		Args: cobra.NoArgs,
		RunE: runHistoryList,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .coordinator/config.yaml)")
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 = all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one coordination with its agent results and events",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "agent <agent-type>",
		Short: "Show aggregated statistics for an agent type",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryAgent,
	})

	return cmd
}

// openHistory opens the configured store. It returns nil without error when
// no database exists yet so callers can print a friendly message.
func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := historyDBPath(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No coordination history found.\nDatabase path: %s\n", dbPath)
		return nil, nil
	}
	store, err := history.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No coordinations recorded yet.")
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(out, "\n=== Recent Coordinations ===\n\n")
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s  ", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"))
		statusColor(r.Status).Fprintf(out, "%-9s", r.Status)
		fmt.Fprintf(out, "  %-13s  confidence %.2f  cost %.2f  %s\n",
			r.CoordinationType, r.AverageConfidence, r.TotalCost, r.Elapsed)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(cmd.Context(), args[0])
	if errors.Is(err, history.ErrRunNotFound) {
		return fmt.Errorf("no coordination with id %s", args[0])
	}
	if err != nil {
		return err
	}
	evs, err := store.Events(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	printRun(cmd.OutOrStdout(), run, evs)
	return nil
}

func printRun(w io.Writer, run *history.Run, evs []history.StoredEvent) {
	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed)

	cyan.Fprintf(w, "\n=== Coordination %s ===\n\n", run.ID)
	if run.PlanFile != "" {
		fmt.Fprintf(w, "  Plan: %s\n", run.PlanFile)
	}
	if run.TaskID != "" {
		fmt.Fprintf(w, "  Task: %s\n", run.TaskID)
	}
	if run.WorkflowID != "" {
		fmt.Fprintf(w, "  Workflow: %s\n", run.WorkflowID)
	}
	fmt.Fprintf(w, "  Pattern: %s\n", run.CoordinationType)
	fmt.Fprintf(w, "  Status: ")
	statusColor(run.Status).Fprintf(w, "%s\n", run.Status)
	fmt.Fprintf(w, "  Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Duration: %s\n", run.Elapsed)
	fmt.Fprintf(w, "  Average confidence: %.2f\n", run.AverageConfidence)
	fmt.Fprintf(w, "  Total cost: %.2f\n", run.TotalCost)
	if run.CoordinationType == string(models.CoordinationFeedbackLoop) {
		fmt.Fprintf(w, "  Iterations: %d (converged: %t)\n", run.Iterations, run.Converged)
	}

	if len(run.AgentResults) > 0 {
		fmt.Fprintf(w, "\n")
		cyan.Fprintf(w, "Agents:\n")
		for _, ar := range run.AgentResults {
			fmt.Fprintf(w, "  %s: confidence %.2f, cost %.2f, %s", ar.AgentType, ar.ConfidenceScore, ar.CostUnits, ar.Duration)
			if ar.Error != "" {
				red.Fprintf(w, " (error: %s)", ar.Error)
			}
			fmt.Fprintln(w)
		}
	}

	if len(run.Errors) > 0 {
		fmt.Fprintf(w, "\n")
		red.Fprintf(w, "Errors:\n")
		for _, e := range run.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}

	if len(evs) > 0 {
		fmt.Fprintf(w, "\n")
		cyan.Fprintf(w, "Events:\n")
		for _, ev := range evs {
			line := fmt.Sprintf("  %s  %s", ev.CreatedAt.Local().Format("15:04:05.000"), ev.Type)
			if ev.AgentType != "" {
				line += " " + ev.AgentType
			}
			fmt.Fprintln(w, line)
		}
	}
}

func runHistoryAgent(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	stats, err := store.AgentStats(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if stats.Invocations == 0 {
		fmt.Fprintf(out, "No results recorded for agent %s.\n", args[0])
		return nil
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan, color.Bold)

	rate := stats.SuccessRate() * 100
	cyan.Fprintf(out, "\n=== Agent %s ===\n\n", stats.AgentType)
	fmt.Fprintf(out, "  Invocations: %d\n", stats.Invocations)
	fmt.Fprintf(out, "  Failures: %d\n", stats.Failures)
	fmt.Fprintf(out, "  Success rate: ")
	switch {
	case rate >= 70:
		green.Fprintf(out, "%.1f%%\n", rate)
	case rate >= 40:
		yellow.Fprintf(out, "%.1f%%\n", rate)
	default:
		red.Fprintf(out, "%.1f%%\n", rate)
	}
	fmt.Fprintf(out, "  Average confidence: %.2f\n", stats.AverageConfidence)
	fmt.Fprintf(out, "  Average duration: %s\n", stats.AverageDuration)
	fmt.Fprintf(out, "  Total cost: %.2f\n", stats.TotalCost)
	return nil
}

func statusColor(status models.ExecutionStatus) *color.Color {
	switch status {
	case models.StatusCompleted:
		return color.New(color.FgGreen)
	case models.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}
