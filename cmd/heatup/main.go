package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/criticalsim/heatup/internal/config"
	"github.com/criticalsim/heatup/internal/logging"
	"github.com/criticalsim/heatup/internal/pathutil"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "heatup",
		Short: "PWR plant heatup simulator",
		Long: `heatup steps a pressurized water reactor plant from cold shutdown to hot
standby: pressurizer bubble draw and drain, stratified steam generator
secondaries through boiling onset, and the condenser steam dumps catching
the secondary at the no-load setpoint.

Runs are fixed-step and deterministic. Every run is recorded to a SQLite
trace store for phase analysis, Arrow export, and live viewing.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file path (default ~/.heatup/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log verbosity: info, debug, or trace")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newRunCmd(),
		newPhasesCmd(),
		newExportCmd(),
		newServeCmd(),
		newValidateCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// loadConfig resolves configuration for a command: the --config file when
// given, the default locations otherwise, then the --log-level override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// newLogger builds the operational logger for a command. Log output goes to
// stderr so stdout stays parseable under --json.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, os.Stderr)
}

// checkWritePaths guards the config-driven artifact paths. Config files and
// environment variables feed these, so writes are held to the working tree,
// the state directory, and the system temp directory rather than landing
// wherever a stray override points.
func checkWritePaths(cfg *config.Config) error {
	allowed, err := pathutil.DefaultAllowedWriteDirs()
	if err != nil {
		return fmt.Errorf("resolving allowed write directories: %w", err)
	}

	if err := pathutil.ValidatePath(cfg.Trace.DBPath, allowed); err != nil {
		return fmt.Errorf("trace db path: %w", err)
	}
	if cfg.Logging.TickLogPath != "" {
		if err := pathutil.ValidatePath(cfg.Logging.TickLogPath, allowed); err != nil {
			return fmt.Errorf("tick log path: %w", err)
		}
	}
	return nil
}

// signalContext returns a context canceled on SIGINT/SIGTERM, for commands
// that step or serve until interrupted.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
