package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harrison/coordinator/internal/config"
	"github.com/harrison/coordinator/internal/events"
	"github.com/harrison/coordinator/internal/executor"
)

// loadConfig reads --config when given, otherwise <home>/config.yaml.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, nil
	}

	home, err := config.Home()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(filepath.Join(home, "config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// historyDBPath resolves the history database. The built-in default moves
// with COORDINATOR_HOME; an explicit db_path is used as written.
func historyDBPath(cfg *config.Config) (string, error) {
	if cfg.History.DBPath == config.DefaultConfig().History.DBPath {
		return config.DefaultHistoryDBPath()
	}
	return cfg.History.DBPath, nil
}

// parseKeyValues turns repeated "key=value" flags into a map. Values are
// decoded as YAML scalars so numbers and booleans keep their type.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}

		var decoded any
		if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
			decoded = nil
		}
		switch decoded.(type) {
		case int, float64, bool:
			values[key] = decoded
		default:
			values[key] = raw
		}
	}
	return values, nil
}

// closeBus drains every subscriber and warns when a full queue made one of
// them miss events, since history and metrics are then incomplete.
func closeBus(bus *events.Bus, log executor.Logger) {
	bus.Close()
	if dropped := bus.Dropped(); dropped > 0 {
		log.LogWarn(fmt.Sprintf("%d event deliveries dropped: history and metrics may be incomplete", dropped))
	}
}
