package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryConfig represents execution history configuration
type HistoryConfig struct {
	// Enabled records every coordination into the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the SQLite history database
	DBPath string `yaml:"db_path"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled registers the metrics event subscriber
	Enabled bool `yaml:"enabled"`

	// Addr serves /metrics on this address while a run is in progress (empty = don't serve)
	Addr string `yaml:"addr"`
}

// AgentEndpoint describes how to reach one agent type. Exactly one of URL or
// Command must be set.
type AgentEndpoint struct {
	// URL is the agent's webhook endpoint
	URL string `yaml:"url"`

	// Command is a local executable that reads a request on stdin
	Command string `yaml:"command"`

	// Args are passed to Command
	Args []string `yaml:"args"`

	// Timeout bounds a single invocation (0 = use the global timeout)
	Timeout time.Duration `yaml:"-"`

	// Headers are added to every webhook request
	Headers map[string]string `yaml:"headers"`
}

// Config represents coordinator configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// MaxConcurrency bounds concurrent agents within a parallel level (0 = unlimited)
	MaxConcurrency int `yaml:"max_concurrency"`

	// MaxIterations caps feedback loop passes (1-5)
	MaxIterations int `yaml:"max_iterations"`

	// ConvergenceThreshold is the confidence delta under which a feedback loop stops
	ConvergenceThreshold float64 `yaml:"convergence_threshold"`

	// Timeout is the default per-invocation timeout
	Timeout time.Duration `yaml:"timeout"`

	// History contains execution history configuration
	History HistoryConfig `yaml:"history"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `yaml:"metrics"`

	// Agents maps agent types to their endpoints
	Agents map[string]AgentEndpoint `yaml:"agents"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:             "info",
		MaxConcurrency:       0, // Unlimited
		MaxIterations:        5,
		ConvergenceThreshold: 0.1,
		Timeout:              2 * time.Minute,
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(HomeDirName, "history", "coordinations.db"),
		},
		Agents: map[string]AgentEndpoint{},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are written as strings ("30s", "2m") in the file
	type yamlAgent struct {
		URL     string            `yaml:"url"`
		Command string            `yaml:"command"`
		Args    []string          `yaml:"args"`
		Timeout string            `yaml:"timeout"`
		Headers map[string]string `yaml:"headers"`
	}
	type yamlConfig struct {
		LogLevel             string               `yaml:"log_level"`
		MaxConcurrency       int                  `yaml:"max_concurrency"`
		MaxIterations        int                  `yaml:"max_iterations"`
		ConvergenceThreshold float64              `yaml:"convergence_threshold"`
		Timeout              string               `yaml:"timeout"`
		History              HistoryConfig        `yaml:"history"`
		Metrics              MetricsConfig        `yaml:"metrics"`
		Agents               map[string]yamlAgent `yaml:"agents"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.MaxConcurrency != 0 {
		cfg.MaxConcurrency = yamlCfg.MaxConcurrency
	}
	if yamlCfg.MaxIterations != 0 {
		cfg.MaxIterations = yamlCfg.MaxIterations
	}
	if yamlCfg.ConvergenceThreshold != 0 {
		cfg.ConvergenceThreshold = yamlCfg.ConvergenceThreshold
	}
	if yamlCfg.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", yamlCfg.Timeout, err)
		}
		cfg.Timeout = timeout
	}
	cfg.Metrics = yamlCfg.Metrics

	// history.enabled defaults to true, so only keys present in the file override it
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, ok := rawMap["history"].(map[string]interface{}); ok {
			if _, exists := section["enabled"]; exists {
				cfg.History.Enabled = yamlCfg.History.Enabled
			}
			if _, exists := section["db_path"]; exists {
				cfg.History.DBPath = yamlCfg.History.DBPath
			}
		}
	}

	for agentType, a := range yamlCfg.Agents {
		endpoint := AgentEndpoint{
			URL:     a.URL,
			Command: a.Command,
			Args:    a.Args,
			Headers: a.Headers,
		}
		if a.Timeout != "" {
			timeout, err := time.ParseDuration(a.Timeout)
			if err != nil {
				return nil, fmt.Errorf("agents.%s: invalid timeout format %q: %w", agentType, a.Timeout, err)
			}
			endpoint.Timeout = timeout
		}
		cfg.Agents[agentType] = endpoint
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .coordinator/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, HomeDirName, "config.yaml"))
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(logLevel *string, maxConcurrency *int, timeout *time.Duration) {
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if maxConcurrency != nil {
		c.MaxConcurrency = *maxConcurrency
	}
	if timeout != nil {
		c.Timeout = *timeout
	}
}

// AgentTypes returns the configured agent types in sorted order.
func (c *Config) AgentTypes() []string {
	types := make([]string, 0, len(c.Agents))
	for t := range c.Agents {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}
	if c.MaxIterations < 1 || c.MaxIterations > 5 {
		return fmt.Errorf("max_iterations must be between 1 and 5, got %d", c.MaxIterations)
	}
	if c.ConvergenceThreshold <= 0 || c.ConvergenceThreshold > 1 {
		return fmt.Errorf("convergence_threshold must be in (0, 1], got %g", c.ConvergenceThreshold)
	}

	// Timeout can be 0 (no timeout) or positive, negative is invalid
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	for _, agentType := range c.AgentTypes() {
		a := c.Agents[agentType]
		switch {
		case a.URL == "" && a.Command == "":
			return fmt.Errorf("agents.%s: one of url or command is required", agentType)
		case a.URL != "" && a.Command != "":
			return fmt.Errorf("agents.%s: url and command are mutually exclusive", agentType)
		case a.Timeout < 0:
			return fmt.Errorf("agents.%s: timeout must be >= 0, got %v", agentType, a.Timeout)
		}
	}

	return nil
}
