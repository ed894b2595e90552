package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/criticalsim/heatup/internal/config"
	"github.com/criticalsim/heatup/internal/trace"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and trace store",
		Long: `Validate the configuration and trace store.

This command checks:
  - Configuration values (timestep, horizon, generator count, thresholds)
  - Artifact write paths against the allowed directories
  - That the trace store opens and its runs are readable

Examples:
  heatup validate
  heatup validate --config custom.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return reportChecks(cmd, jsonOut, []checkResult{
					{Name: "configuration loads", Err: err},
				})
			}

			checks := []checkResult{
				{Name: "configuration loads"},
				{
					Name:   "configuration valid",
					Detail: fmt.Sprintf("dt: %.1f s   horizon: %.1f h   SGs: %d", cfg.Simulation.DtHr*3600, cfg.Simulation.MaxHours, cfg.Simulation.SGCount),
					Err:    cfg.Validate(),
				},
				{
					Name:   "write paths allowed",
					Detail: writePathDetail(cfg),
					Err:    checkWritePaths(cfg),
				},
				checkTraceStore(cfg),
			}
			return reportChecks(cmd, jsonOut, checks)
		},
	}
}

// checkResult is one validation check's outcome.
type checkResult struct {
	Name   string
	Detail string
	Err    error
}

// writePathDetail summarizes the configured artifact paths.
func writePathDetail(cfg *config.Config) string {
	tick := cfg.Logging.TickLogPath
	if tick == "" {
		tick = "(disabled)"
	}
	return fmt.Sprintf("db: %s   tick log: %s", cfg.Trace.DBPath, tick)
}

// checkTraceStore opens the trace store if it exists and counts its runs.
func checkTraceStore(cfg *config.Config) checkResult {
	res := checkResult{Name: "trace store reachable"}

	if _, err := os.Stat(cfg.Trace.DBPath); os.IsNotExist(err) {
		res.Detail = "no store yet; created on first run"
		return res
	}

	st, err := trace.New(cfg.Trace)
	if err != nil {
		res.Err = err
		return res
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background())
	if err != nil {
		res.Err = err
		return res
	}
	res.Detail = fmt.Sprintf("%d recorded runs", len(runs))
	return res
}

// reportChecks formats and outputs validation results.
func reportChecks(cmd *cobra.Command, jsonOut bool, checks []checkResult) error {
	valid := true
	for _, c := range checks {
		if c.Err != nil {
			valid = false
		}
	}

	if jsonOut {
		entries := make([]map[string]interface{}, len(checks))
		for i, c := range checks {
			entry := map[string]interface{}{
				"name": c.Name,
				"ok":   c.Err == nil,
			}
			if c.Detail != "" {
				entry["detail"] = c.Detail
			}
			if c.Err != nil {
				entry["error"] = c.Err.Error()
			}
			entries[i] = entry
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
			"valid":  valid,
			"checks": entries,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating configuration...\n\n")
	for _, c := range checks {
		if c.Err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", c.Name, c.Err)
			continue
		}
		fmt.Fprintf(out, "✓ %s\n", c.Name)
		if c.Detail != "" {
			fmt.Fprintf(out, "    %s\n", c.Detail)
		}
	}
	if !valid {
		fmt.Fprintln(out, "\nFix the issues above and re-run 'heatup validate'.")
	}
	return nil
}
