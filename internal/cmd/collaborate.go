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

// NewCollaborateCommand creates the primary-plus-reviewers command
func NewCollaborateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collaborate",
		Short: "Run a primary agent and fan its result out to supporting agents",
		Long: `Invoke the primary agent with the collaboration data, then invoke every
supporting agent concurrently with the primary's result. Supporting agents
receive the task type "<type>_review". All results are printed as JSON in
order: primary first, then supporters as listed.

Example:
  coordinator collaborate --primary drafter --support legal --support style \
    --type contract --data clause=indemnity`,
		Args: cobra.NoArgs,
		RunE: runCollaborate,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .coordinator/config.yaml)")
	cmd.Flags().String("primary", "", "Primary agent (required)")
	cmd.Flags().StringArray("support", nil, "Supporting agent (repeatable)")
	cmd.Flags().String("type", "", "Collaboration type (required)")
	cmd.Flags().String("task-id", "", "Task ID")
	cmd.Flags().String("workflow-id", "", "Workflow ID")
	cmd.Flags().StringArray("data", nil, "Collaboration data as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("primary")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runCollaborate(cmd *cobra.Command, args []string) error {
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

	req := executor.CollaborationRequest{CollaborationData: data}
	req.PrimaryAgent, _ = cmd.Flags().GetString("primary")
	req.SupportingAgents, _ = cmd.Flags().GetStringArray("support")
	req.CollaborationType, _ = cmd.Flags().GetString("type")
	req.TaskID, _ = cmd.Flags().GetString("task-id")
	req.WorkflowID, _ = cmd.Flags().GetString("workflow-id")

	registry, err := invoker.NewRegistryFromConfig(cfg)
	if err != nil {
		return err
	}
	for _, agent := range append([]string{req.PrimaryAgent}, req.SupportingAgents...) {
		if !registry.Has(agent) {
			return fmt.Errorf("no endpoint configured for agent %s", agent)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consoleLog := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	bus := events.NewBus()
	defer bus.Close()
	bus.Subscribe("console", consoleLog, 0)

	engine := executor.NewEngine(registry,
		executor.WithEmitter(bus),
		executor.WithLogger(consoleLog),
		executor.WithMaxConcurrency(cfg.MaxConcurrency),
	)
	result, collabErr := engine.Collaborate(ctx, req)
	closeBus(bus, consoleLog)

	// Supporter failures still produce a full result; print it before failing.
	if result != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	if collabErr != nil {
		return fmt.Errorf("collaboration failed: %w", collabErr)
	}
	return nil
}
