package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/coordinator/internal/events"
	"github.com/harrison/coordinator/internal/executor"
	"github.com/harrison/coordinator/internal/invoker"
	"github.com/harrison/coordinator/internal/logger"
)

// NewHandoffCommand creates the one-shot handoff command
func NewHandoffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Hand a task from one agent to another",
		Long: `Invoke the receiving agent once with the handoff data as its input and the
handoff reason as its task type. The agent's result is printed as JSON.

Example:
  coordinator handoff --from triage --to billing --reason escalate \
    --task-id t-1 --data invoice=INV-7 --context customer_tier=gold`,
		Args: cobra.NoArgs,
		RunE: runHandoff,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .coordinator/config.yaml)")
	cmd.Flags().String("from", "", "Agent handing the task off (required)")
	cmd.Flags().String("to", "", "Agent receiving the task (required)")
	cmd.Flags().String("reason", "", "Handoff reason, sent as the task type (required)")
	cmd.Flags().String("task-id", "", "Task ID")
	cmd.Flags().String("workflow-id", "", "Workflow ID")
	cmd.Flags().StringArray("data", nil, "Handoff data as key=value (repeatable)")
	cmd.Flags().StringArray("context", nil, "Context data as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func runHandoff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dataPairs, _ := cmd.Flags().GetStringArray("data")
	data, err := parseKeyValues(dataPairs)
	if err != nil {
		return fmt.Errorf("invalid --data: %w", err)
	}
	contextPairs, _ := cmd.Flags().GetStringArray("context")
	contextData, err := parseKeyValues(contextPairs)
	if err != nil {
		return fmt.Errorf("invalid --context: %w", err)
	}

	req := executor.HandoffRequest{
		HandoffData: data,
		ContextData: contextData,
	}
	req.FromAgent, _ = cmd.Flags().GetString("from")
	req.ToAgent, _ = cmd.Flags().GetString("to")
	req.Reason, _ = cmd.Flags().GetString("reason")
	req.TaskID, _ = cmd.Flags().GetString("task-id")
	req.WorkflowID, _ = cmd.Flags().GetString("workflow-id")

	registry, err := invoker.NewRegistryFromConfig(cfg)
	if err != nil {
		return err
	}
	if !registry.Has(req.ToAgent) {
		return fmt.Errorf("no endpoint configured for agent %s", req.ToAgent)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Progress goes to stderr so stdout stays valid JSON.
	consoleLog := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	bus := events.NewBus()
	defer bus.Close()
	bus.Subscribe("console", consoleLog, 0)

	engine := executor.NewEngine(registry, executor.WithEmitter(bus), executor.WithLogger(consoleLog))
	result, err := engine.Handoff(ctx, req)
	closeBus(bus, consoleLog)
	if err != nil {
		return fmt.Errorf("handoff to %s failed: %w", req.ToAgent, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
