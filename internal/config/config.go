// Package config provides unified configuration loading for heatup.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/criticalsim/heatup/internal/phases"
	"github.com/criticalsim/heatup/internal/stepper"
	"github.com/criticalsim/heatup/internal/telemetry"
	"github.com/criticalsim/heatup/internal/trace"
)

// Config contains all heatup configuration settings.
type Config struct {
	// Simulation contains the stepper and model parameters.
	Simulation stepper.Config `yaml:"simulation"`

	// Phases contains the bubble-procedure analyzer thresholds.
	Phases phases.Config `yaml:"phases"`

	// Trace contains the run store settings.
	Trace trace.Config `yaml:"trace"`

	// Telemetry contains the live viewer server settings.
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Logging contains settings for operational and tick logging.
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures heatup's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "trace" includes per-tick controller detail.
	Level string `yaml:"level"`

	// TickLogPath, when set, appends one JSONL snapshot line per tick.
	// Supports ${VAR} syntax for env vars.
	TickLogPath string `yaml:"tick_log_path,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Simulation: stepper.DefaultConfig(),
		Phases:     phases.DefaultConfig(),
		Trace:      trace.DefaultConfig(),
		Telemetry:  telemetry.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.heatup/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	// Try to load from default config file
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".heatup", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand environment variables in file paths
	config.Trace.DBPath = expandEnvVars(config.Trace.DBPath)
	config.Logging.TickLogPath = expandEnvVars(config.Logging.TickLogPath)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if err := c.Phases.Validate(); err != nil {
		return fmt.Errorf("phases: %w", err)
	}
	if err := c.Trace.Validate(); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("HEATUP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("HEATUP_TICK_LOG"); v != "" {
		config.Logging.TickLogPath = v
	}

	if v := os.Getenv("HEATUP_DB_PATH"); v != "" {
		config.Trace.DBPath = v
	}

	if v := os.Getenv("HEATUP_TELEMETRY_ADDR"); v != "" {
		config.Telemetry.Addr = v
	}

	if v := os.Getenv("HEATUP_DT_HR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.DtHr = f
		}
	}

	if v := os.Getenv("HEATUP_MAX_HOURS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.MaxHours = f
		}
	}

	if v := os.Getenv("HEATUP_SG_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.SGCount = n
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
