package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/criticalsim/heatup/internal/trace"
)

func newPhasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phases [run-id]",
		Short: "List recorded runs or show a run's phase windows",
		Long: `List the runs in the trace store, or show the bubble-procedure phase
windows of one recorded run.

The run ID may be a full ID, a unique prefix, or 'latest'.

Examples:
  heatup phases              # list recorded runs
  heatup phases latest       # windows of the most recent run
  heatup phases 3f2a         # windows of the run starting 3f2a`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
				cfg.Trace.DBPath = dbPath
			}
			jsonOut, _ := cmd.Flags().GetBool("json")

			// Opening the store would create an empty one; report instead.
			if _, statErr := os.Stat(cfg.Trace.DBPath); os.IsNotExist(statErr) {
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
						"error": "no trace store",
						"path":  cfg.Trace.DBPath,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "No trace store at %s. Run 'heatup run' first.\n", cfg.Trace.DBPath)
				return nil
			}

			st, err := trace.New(cfg.Trace)
			if err != nil {
				return fmt.Errorf("opening trace store: %w", err)
			}
			defer st.Close()

			ctx := context.Background()
			if len(args) == 0 {
				return listRuns(cmd, ctx, st, jsonOut)
			}
			return showRunWindows(cmd, ctx, st, args[0], jsonOut)
		},
	}

	cmd.Flags().String("db", "", "Trace store path (overrides the configured path)")

	return cmd
}

// listRuns prints every recorded run, oldest first.
func listRuns(cmd *cobra.Command, ctx context.Context, st *trace.Store, jsonOut bool) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if jsonOut {
		entries := make([]map[string]interface{}, len(runs))
		for i, r := range runs {
			steps, err := st.CountSnapshots(ctx, r.ID)
			if err != nil {
				return fmt.Errorf("counting snapshots for %s: %w", r.ID, err)
			}
			entries[i] = runJSON(r, steps)
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
			"runs":  entries,
			"count": len(runs),
		})
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs. Use 'heatup run' to record one.")
		return nil
	}

	fmt.Fprintf(out, "Recorded runs (%d):\n\n", len(runs))
	for i, r := range runs {
		steps, err := st.CountSnapshots(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("counting snapshots for %s: %w", r.ID, err)
		}

		status := "finished"
		if r.FinishedAt.IsZero() {
			status = "unfinished"
		}
		fmt.Fprintf(out, "%d. %s (%s)\n", i+1, r.ID, status)
		fmt.Fprintf(out, "   Started: %s   dt: %.1f s   SGs: %d   steps: %d\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.DtHr*3600, r.SGCount, steps)
		if r.Notes != "" {
			fmt.Fprintf(out, "   Notes: %s\n", r.Notes)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// showRunWindows prints the phase windows recorded for one run.
func showRunWindows(cmd *cobra.Command, ctx context.Context, st *trace.Store, arg string, jsonOut bool) error {
	run, err := resolveRun(ctx, st, arg)
	if err != nil {
		return err
	}

	windows, err := st.PhaseWindows(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("loading phase windows: %w", err)
	}

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
			"run":     runJSON(run, -1),
			"windows": windows,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s, started %s\n\n", run.ID, run.StartedAt.Format("2006-01-02 15:04:05"))
	printWindows(out, windows)
	return nil
}

// resolveRun finds a run by full ID, unique prefix, or 'latest'.
func resolveRun(ctx context.Context, st *trace.Store, arg string) (trace.Run, error) {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return trace.Run{}, fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		return trace.Run{}, fmt.Errorf("no recorded runs")
	}
	if arg == "latest" {
		return runs[len(runs)-1], nil
	}

	var matches []trace.Run
	for _, r := range runs {
		if r.ID == arg {
			return r, nil
		}
		if strings.HasPrefix(r.ID, arg) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return trace.Run{}, fmt.Errorf("no run matches %q", arg)
	default:
		return trace.Run{}, fmt.Errorf("run id %q is ambiguous (%d matches)", arg, len(matches))
	}
}

// runJSON shapes a run record for --json output. A negative steps count
// omits the field.
func runJSON(r trace.Run, steps int) map[string]interface{} {
	m := map[string]interface{}{
		"id":         r.ID,
		"started_at": r.StartedAt,
		"dt_hr":      r.DtHr,
		"sg_count":   r.SGCount,
	}
	if !r.FinishedAt.IsZero() {
		m["finished_at"] = r.FinishedAt
	}
	if r.Notes != "" {
		m["notes"] = r.Notes
	}
	if steps >= 0 {
		m["steps"] = steps
	}
	return m
}
