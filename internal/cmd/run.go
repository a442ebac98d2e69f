package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/coordinator/internal/events"
	"github.com/harrison/coordinator/internal/executor"
	"github.com/harrison/coordinator/internal/filelock"
	"github.com/harrison/coordinator/internal/history"
	"github.com/harrison/coordinator/internal/invoker"
	"github.com/harrison/coordinator/internal/logger"
	"github.com/harrison/coordinator/internal/metrics"
	"github.com/harrison/coordinator/internal/models"
	"github.com/harrison/coordinator/internal/parser"
)

// outputWriteTimeout bounds waiting on another process's lock for --output.
const outputWriteTimeout = 30 * time.Second

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plan-file>",
		Short: "Execute a coordination plan",
		Long: `Execute a coordination plan by invoking its agents with the plan's
coordination pattern (sequential, parallel, conditional or feedback_loop).

The plan file may be Markdown, YAML or JSON. Every agent type in the plan
needs an endpoint in the agents section of the configuration.

Configuration is loaded from .coordinator/config.yaml (or $COORDINATOR_HOME)
if present. CLI flags override configuration file settings.

Examples:
  coordinator run plan.md
  coordinator run --dry-run plan.yaml                 # Validate and show levels
  coordinator run --context region=eu --context tier=2 plan.md
  coordinator run --max-concurrency 4 --timeout 30s plan.md
  coordinator run --output result.json plan.md        # Write the result as JSON`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .coordinator/config.yaml)")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().Int("max-concurrency", -1, "Maximum concurrent agents per parallel level (0 = unlimited, -1 = use config)")
	cmd.Flags().String("timeout", "", "Per-invocation timeout (e.g., 30s, 2m)")
	cmd.Flags().String("output", "", "Write the coordination result as JSON to this file")
	cmd.Flags().StringArray("context", nil, "Execution context value as key=value (repeatable)")
	cmd.Flags().String("task-id", "", "Task ID (default: the plan's task_id)")
	cmd.Flags().String("workflow-id", "", "Workflow ID (default: the plan's workflow_id)")
	cmd.Flags().String("workflow-type", "", "Workflow type passed in the execution context")
	cmd.Flags().Bool("dry-run", false, "Validate the plan without invoking agents")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var logLevelPtr *string
	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		logLevelPtr = &level
	}
	var maxConcurrencyPtr *int
	if cmd.Flags().Changed("max-concurrency") {
		n, _ := cmd.Flags().GetInt("max-concurrency")
		maxConcurrencyPtr = &n
	}
	var timeoutPtr *time.Duration
	if cmd.Flags().Changed("timeout") {
		timeoutStr, _ := cmd.Flags().GetString("timeout")
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return fmt.Errorf("invalid timeout format %q: %w", timeoutStr, err)
		}
		timeoutPtr = &timeout
	}
	cfg.MergeWithFlags(logLevelPtr, maxConcurrencyPtr, timeoutPtr)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	contextPairs, _ := cmd.Flags().GetStringArray("context")
	values, err := parseKeyValues(contextPairs)
	if err != nil {
		return fmt.Errorf("invalid --context: %w", err)
	}

	out := cmd.OutOrStdout()
	planFile := args[0]
	fmt.Fprintf(out, "Loading plan from %s...\n", planFile)
	plan, err := parser.ParseFile(planFile)
	if err != nil {
		return fmt.Errorf("failed to load plan file: %w", err)
	}
	if err := executor.ValidatePlan(plan); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	printPlanSummary(out, plan)

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Fprintf(out, "\nDry-run mode: plan is valid.\n")
		printSchedule(out, plan)
		return nil
	}

	registry, err := invoker.NewRegistryFromConfig(cfg)
	if err != nil {
		return err
	}
	if missing := registry.Missing(plan); len(missing) > 0 {
		return fmt.Errorf("no endpoint configured for agent(s): %s", strings.Join(missing, ", "))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consoleLog := logger.NewConsoleLogger(out, cfg.LogLevel)
	bus := events.NewBus()
	defer bus.Close()
	bus.Subscribe("console", consoleLog, 0)

	if cfg.History.Enabled {
		dbPath, err := historyDBPath(cfg)
		if err != nil {
			return err
		}
		store, err := history.NewStore(dbPath)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
		bus.Subscribe("history", history.NewRecorder(store, plan.FilePath, func(err error) {
			consoleLog.LogWarn(fmt.Sprintf("history: %v", err))
		}), 0)
	}

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		bus.Subscribe("metrics", collector, 0)
		if cfg.Metrics.Addr != "" {
			addr, _, err := collector.Serve(ctx, cfg.Metrics.Addr)
			if err != nil {
				return fmt.Errorf("start metrics server: %w", err)
			}
			consoleLog.LogInfo(fmt.Sprintf("Serving metrics on http://%s/metrics", addr))
		}
	}

	engine := executor.NewEngine(registry,
		executor.WithEmitter(bus),
		executor.WithLogger(consoleLog),
		executor.WithMaxConcurrency(cfg.MaxConcurrency),
		executor.WithFeedbackLimits(cfg.MaxIterations, cfg.ConvergenceThreshold),
	)

	execCtx := models.ExecutionContext{
		TaskID:     flagOr(cmd, "task-id", plan.TaskID),
		WorkflowID: flagOr(cmd, "workflow-id", plan.WorkflowID),
		Values:     values,
	}
	execCtx.WorkflowType, _ = cmd.Flags().GetString("workflow-type")

	fmt.Fprintf(out, "\nStarting coordination...\n\n")
	result, runErr := engine.Execute(ctx, plan, execCtx)

	// Drain subscribers so the console and history have seen every event.
	closeBus(bus, consoleLog)

	if result != nil {
		consoleLog.LogSummary(result)

		if outputPath, _ := cmd.Flags().GetString("output"); outputPath != "" {
			writeCtx, cancel := context.WithTimeout(context.Background(), outputWriteTimeout)
			defer cancel()
			if err := filelock.WriteJSON(writeCtx, outputPath, result); err != nil {
				return fmt.Errorf("failed to write result: %w", err)
			}
			fmt.Fprintf(out, "Result written to %s\n", outputPath)
		}
	}

	if runErr != nil {
		return fmt.Errorf("coordination failed: %w", runErr)
	}
	return nil
}

// flagOr returns the string flag name when set, otherwise fallback.
func flagOr(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}

func printPlanSummary(w io.Writer, plan *models.CoordinationPlan) {
	fmt.Fprintf(w, "\nPlan Summary:\n")
	if plan.Name != "" {
		fmt.Fprintf(w, "  Name: %s\n", plan.Name)
	}
	fmt.Fprintf(w, "  Pattern: %s\n", plan.CoordinationType)
	fmt.Fprintf(w, "  Agents: %d\n", len(plan.Agents))
	if len(plan.QualityGates) > 0 {
		fmt.Fprintf(w, "  Quality gates: %d\n", len(plan.QualityGates))
	}
}

// printSchedule shows dependency levels for parallel plans and the
// execution order for every other pattern.
func printSchedule(w io.Writer, plan *models.CoordinationPlan) {
	if plan.CoordinationType == models.CoordinationParallel {
		levels, err := executor.CalculateLevels(plan)
		if err != nil {
			fmt.Fprintf(w, "  %v\n", err)
			return
		}
		fmt.Fprintf(w, "\nExecution levels:\n")
		for _, level := range levels {
			fmt.Fprintf(w, "  Level %d: %s\n", level.Index+1, strings.Join(level.AgentTypes(), ", "))
		}
		return
	}

	fmt.Fprintf(w, "\nExecution order:\n")
	for i, cfg := range plan.SortedByOrder() {
		line := fmt.Sprintf("  %d. %s", i+1, cfg.AgentType)
		if len(cfg.Dependencies) > 0 {
			line += fmt.Sprintf(" (after %s)", strings.Join(cfg.Dependencies, ", "))
		}
		if len(cfg.Conditions) > 0 {
			line += fmt.Sprintf(" [if %s]", strings.Join(cfg.Conditions, " and "))
		}
		fmt.Fprintln(w, line)
	}
}
