package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/criticalsim/heatup/internal/config"
	"github.com/criticalsim/heatup/internal/logging"
	"github.com/criticalsim/heatup/internal/models"
	"github.com/criticalsim/heatup/internal/operator"
	"github.com/criticalsim/heatup/internal/phases"
	"github.com/criticalsim/heatup/internal/stepper"
	"github.com/criticalsim/heatup/internal/trace"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scripted heatup and record it",
		Long: `Run a scripted heatup from cold shutdown and record every tick to the
trace store.

The script plays the operator: each stage keys off observed plant
conditions rather than elapsed time, so the same script holds across
timestep and parameter changes.

Examples:
  heatup run                          # standard procedure to hot standby
  heatup run --script bubble          # bubble draw and pressurization only
  heatup run --hours 12 --notes "short baseline"
  heatup run --db runs/today.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			scriptName, _ := cmd.Flags().GetString("script")
			script, err := scriptByName(scriptName)
			if err != nil {
				return err
			}
			notes, _ := cmd.Flags().GetString("notes")

			ctx, cancel := signalContext()
			defer cancel()

			outcome, err := executeRun(ctx, cfg, newLogger(cfg), script, notes, nil)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			return printRunSummary(cmd, outcome, jsonOut)
		},
	}

	cmd.Flags().String("script", "standard", "Operator script: standard or bubble")
	cmd.Flags().Float64("hours", 0, "Run horizon in simulated hours (0 keeps the configured horizon)")
	cmd.Flags().Float64("dt-hr", 0, "Timestep in hours (0 keeps the configured timestep)")
	cmd.Flags().String("db", "", "Trace store path (overrides the configured path)")
	cmd.Flags().String("notes", "", "Free-form note stored with the run")

	return cmd
}

// applyRunFlags folds the run command's overrides into the configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if hours, _ := cmd.Flags().GetFloat64("hours"); hours > 0 {
		cfg.Simulation.MaxHours = hours
	}
	if dtHr, _ := cmd.Flags().GetFloat64("dt-hr"); dtHr > 0 {
		cfg.Simulation.DtHr = dtHr
	}
	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.Trace.DBPath = dbPath
	}
}

// scriptByName maps a --script value to a fresh operator script.
func scriptByName(name string) (operator.Script, error) {
	switch name {
	case "standard":
		return operator.NewStandardHeatup(), nil
	case "bubble":
		return operator.NewBubbleProcedure(), nil
	default:
		return nil, fmt.Errorf("unknown script %q (use 'standard' or 'bubble')", name)
	}
}

// runOutcome is what a finished run leaves behind.
type runOutcome struct {
	Run         trace.Run
	Script      string
	Steps       int
	Final       models.PlantState
	Windows     []phases.Window
	Interrupted bool
}

// executeRun steps a scripted run to completion, recording every tick to the
// trace store and the optional tick log, and fanning snapshots to extra when
// given (the serve command's paced telemetry). ctx governs the stepping only;
// persistence runs on a background context so an interrupted run still lands
// in the store with its phase windows.
func executeRun(ctx context.Context, cfg *config.Config, log *slog.Logger, script operator.Script, notes string, extra stepper.SnapshotSink) (*runOutcome, error) {
	if err := checkWritePaths(cfg); err != nil {
		return nil, err
	}

	st, err := trace.New(cfg.Trace)
	if err != nil {
		return nil, fmt.Errorf("opening trace store: %w", err)
	}
	defer st.Close()

	storeCtx := context.Background()
	run, err := st.CreateRun(storeCtx, cfg.Simulation.DtHr, cfg.Simulation.SGCount, notes)
	if err != nil {
		return nil, err
	}
	rec := st.NewRecorder(storeCtx, run.ID)

	tickLog := logging.NewTickLogger(cfg.Logging.TickLogPath)
	if cfg.Logging.TickLogPath != "" && tickLog == nil {
		log.Warn("tick log disabled", "path", cfg.Logging.TickLogPath)
	}
	defer tickLog.Close()

	sim := stepper.New(cfg.Simulation)
	state := sim.InitialState()

	log.Info("run starting",
		"run_id", run.ID,
		"script", script.Name(),
		"dt_hr", cfg.Simulation.DtHr,
		"max_hours", cfg.Simulation.MaxHours,
		"sg_count", cfg.Simulation.SGCount)

	var snaps []models.Snapshot
	sink := stepper.SinkFunc(func(snap models.Snapshot) error {
		snaps = append(snaps, snap)
		tickLog.Log(&snap)
		if err := rec.Emit(snap); err != nil {
			return err
		}
		if extra != nil {
			return extra.Emit(snap)
		}
		return nil
	})

	runErr := sim.Run(ctx, &state, script, sink)
	interrupted := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	if runErr != nil && !interrupted {
		return nil, fmt.Errorf("run %s: %w", run.ID, runErr)
	}

	if err := rec.Flush(); err != nil {
		return nil, fmt.Errorf("flushing run %s: %w", run.ID, err)
	}
	if err := st.FinishRun(storeCtx, run.ID); err != nil {
		return nil, fmt.Errorf("finishing run %s: %w", run.ID, err)
	}

	windows := phases.New(cfg.Phases).Analyze(snaps)
	if err := st.SavePhaseWindows(storeCtx, run.ID, windows); err != nil {
		return nil, fmt.Errorf("saving phase windows for run %s: %w", run.ID, err)
	}

	if interrupted {
		log.Info("run interrupted", "run_id", run.ID, "steps", len(snaps), "sim_hr", state.TimeHr)
	} else {
		log.Info("run finished",
			"run_id", run.ID,
			"steps", len(snaps),
			"sim_hr", state.TimeHr,
			"tavg_f", state.TavgF,
			"rcs_psig", state.RCSPressurePsig,
			"bridge", state.Dump.Bridge)
	}

	return &runOutcome{
		Run:         run,
		Script:      script.Name(),
		Steps:       len(snaps),
		Final:       state,
		Windows:     windows,
		Interrupted: interrupted,
	}, nil
}

// printRunSummary writes the post-run report: final plant conditions and the
// phase windows the analyzer found.
func printRunSummary(cmd *cobra.Command, outcome *runOutcome, jsonOut bool) error {
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
			"run_id":      outcome.Run.ID,
			"script":      outcome.Script,
			"steps":       outcome.Steps,
			"sim_hours":   outcome.Final.TimeHr,
			"interrupted": outcome.Interrupted,
			"final":       outcome.Final,
			"windows":     outcome.Windows,
		})
	}

	out := cmd.OutOrStdout()
	final := &outcome.Final

	verb := "finished"
	if outcome.Interrupted {
		verb = "interrupted"
	}
	fmt.Fprintf(out, "Run %s (%s) %s after %d steps / %.2f sim hours\n\n",
		outcome.Run.ID, outcome.Script, verb, outcome.Steps, final.TimeHr)

	fmt.Fprintf(out, "  Tavg            %8.1f °F\n", final.TavgF)
	fmt.Fprintf(out, "  RCS pressure    %8.1f psig\n", final.RCSPressurePsig)
	fmt.Fprintf(out, "  Heatup rate     %8.1f °F/hr\n", final.HeatupRateFHr)
	if final.Pzr.BubbleFormed {
		fmt.Fprintf(out, "  Pressurizer     %8.1f %% level, bubble drawn at %.2f hr\n",
			final.Pzr.LevelPct, final.Pzr.BubbleFormedHr)
	} else {
		fmt.Fprintf(out, "  Pressurizer     %8.1f %% level, water-solid\n", final.Pzr.LevelPct)
	}
	fmt.Fprintf(out, "  SG header       %8.1f psig (min level %.1f %%)\n",
		final.MeanSGPressurePsig(), final.MinSGLevelPct())
	fmt.Fprintf(out, "  Startup ladder  %8s\n", final.Startup)
	fmt.Fprintf(out, "  SG ladder       %8s\n", final.SGOverall)
	fmt.Fprintf(out, "  Dump bridge     %8s\n\n", final.Dump.Bridge)

	printWindows(out, outcome.Windows)
	return nil
}

// printWindows writes the phase window table.
func printWindows(out io.Writer, windows []phases.Window) {
	if len(windows) == 0 {
		fmt.Fprintln(out, "No phase windows.")
		return
	}
	fmt.Fprintln(out, "Phase windows:")
	for _, w := range windows {
		fmt.Fprintf(out, "  %-12s %7.2f - %7.2f hr  (%.2f hr)\n",
			w.Phase, w.StartHr, w.EndHr, w.DurationHr())
	}
}
