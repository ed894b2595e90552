package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/criticalsim/heatup/internal/trace"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a run's snapshot series as an Arrow IPC stream",
		Long: `Export one recorded run's full snapshot series as an Arrow IPC stream for
offline analysis: one row per tick, list columns for the per-generator
channels.

The run ID may be a full ID, a unique prefix, or 'latest'. The default
output path is <run-id>.arrow in the working directory. With '-o -' the
stream goes to stdout and the summary is suppressed.

Examples:
  heatup export latest
  heatup export 3f2a -o trajectory.arrow
  heatup export latest -o - > trajectory.arrow`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
				cfg.Trace.DBPath = dbPath
			}

			if _, statErr := os.Stat(cfg.Trace.DBPath); os.IsNotExist(statErr) {
				return fmt.Errorf("no trace store at %s", cfg.Trace.DBPath)
			}

			st, err := trace.New(cfg.Trace)
			if err != nil {
				return fmt.Errorf("opening trace store: %w", err)
			}
			defer st.Close()

			ctx := context.Background()
			run, err := resolveRun(ctx, st, args[0])
			if err != nil {
				return err
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "-" {
				return st.ExportRun(ctx, run.ID, cmd.OutOrStdout())
			}
			if output == "" {
				output = run.ID + ".arrow"
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			if err := st.ExportRun(ctx, run.ID, f); err != nil {
				f.Close()
				return fmt.Errorf("exporting run %s: %w", run.ID, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("closing output file: %w", err)
			}

			steps, err := st.CountSnapshots(ctx, run.ID)
			if err != nil {
				return fmt.Errorf("counting snapshots: %w", err)
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"run_id":    run.ID,
					"snapshots": steps,
					"path":      output,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d snapshots of run %s to %s\n", steps, run.ID, output)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file path ('-' for stdout)")
	cmd.Flags().String("db", "", "Trace store path (overrides the configured path)")

	return cmd
}
