package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/criticalsim/heatup/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a scripted heatup with live telemetry",
		Long: `Run a scripted heatup while serving live telemetry over websocket.

Gauge panels connect to ws://<addr>/ws and receive one JSON snapshot
frame per tick, throttled per viewer and dropped rather than queued when
a viewer falls behind. The run is paced against the wall clock for
display only; the simulation itself stays fixed-step and deterministic,
and the full series is recorded to the trace store as usual.

At --speed 60 one simulated hour plays per wall minute. A speed of 0
runs unpaced.

Examples:
  heatup serve                        # standard procedure at 60x
  heatup serve --speed 240            # whole heatup in ~6 wall minutes
  heatup serve --script bubble --wait # hold the start for a viewer`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg)
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Telemetry.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			scriptName, _ := cmd.Flags().GetString("script")
			script, err := scriptByName(scriptName)
			if err != nil {
				return err
			}
			notes, _ := cmd.Flags().GetString("notes")
			speed, _ := cmd.Flags().GetFloat64("speed")
			wait, _ := cmd.Flags().GetBool("wait")

			log := newLogger(cfg)

			ctx, cancel := signalContext()
			defer cancel()

			hub, err := telemetry.NewHub(cfg.Telemetry, log)
			if err != nil {
				return err
			}

			serveErr := make(chan error, 1)
			go func() { serveErr <- hub.Serve(ctx) }()

			// Catch an immediate bind failure before stepping anything.
			select {
			case err := <-serveErr:
				return err
			case <-time.After(100 * time.Millisecond):
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Telemetry at ws://%s/ws\n", cfg.Telemetry.Addr)

			if wait {
				fmt.Fprintln(out, "Waiting for a viewer. Press Ctrl-C to stop.")
				if waitForViewer(ctx, hub) != nil {
					// Interrupted while waiting.
					return nil
				}
			}

			pacer := telemetry.NewPacer(speed, hub.Emit)
			outcome, err := executeRun(ctx, cfg, log, script, notes, pacer)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if err := printRunSummary(cmd, outcome, jsonOut); err != nil {
				return err
			}

			if outcome.Interrupted {
				cancel()
				return <-serveErr
			}

			fmt.Fprintln(out, "Run complete. Serving until interrupted.")
			<-ctx.Done()
			return <-serveErr
		},
	}

	cmd.Flags().String("script", "standard", "Operator script: standard or bubble")
	cmd.Flags().Float64("hours", 0, "Run horizon in simulated hours (0 keeps the configured horizon)")
	cmd.Flags().Float64("dt-hr", 0, "Timestep in hours (0 keeps the configured timestep)")
	cmd.Flags().String("db", "", "Trace store path (overrides the configured path)")
	cmd.Flags().String("notes", "", "Free-form note stored with the run")
	cmd.Flags().Float64("speed", 60, "Playback speed in simulated hours per wall hour (0 for unpaced)")
	cmd.Flags().String("addr", "", "Telemetry listen address (overrides the configured address)")
	cmd.Flags().Bool("wait", false, "Hold the run start until a viewer connects")

	return cmd
}

// waitForViewer blocks until the hub has a connected viewer or ctx ends.
func waitForViewer(ctx context.Context, hub *telemetry.Hub) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if hub.ClientCount() > 0 {
				return nil
			}
		}
	}
}
