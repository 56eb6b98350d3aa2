package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded load runs",
	Long: `Show the most recent load runs recorded by "mirrorperf run", or the
details of one run.

Examples:
  mirrorperf history
  mirrorperf history --limit 50
  mirrorperf history 5f0c2c2e-8f5e-4d8b-9a55-6a1f0b4f7f00 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: historyCommand,
}

var (
	historyLimitFlag int
	historyDBFlag    string
	historyJSONFlag  bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyDBFlag, "history-db", getEnvString("MIRRORPERF_HISTORY_DB", ""), "SQLite file for run history (default from config) (env: MIRRORPERF_HISTORY_DB)")
	historyCmd.Flags().BoolVar(&historyJSONFlag, "json", false, "Output as JSON")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noColor(cfg) {
		color.NoColor = true
	}

	store, err := history.Open(historyPath(cfg, historyDBFlag))
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer store.Close()

	var runs []*history.Run
	if len(args) == 1 {
		run, err := store.Get(args[0])
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		if run == nil {
			return withExitCode(ExitUsageError, fmt.Errorf("run %q not found", args[0]))
		}
		runs = []*history.Run{run}
	} else {
		runs, err = store.Recent(historyLimitFlag)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
	}

	if historyJSONFlag {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}

	if len(args) == 1 {
		printRun(cmd, runs[0])
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tRECORDED\tSCENARIOS\tMODE\tITERATIONS\tRPS\tP95\tCHECKS\tRESULT")
	for _, r := range runs {
		result := green("PASS")
		if !r.Passed {
			result = red("FAIL")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.1f\t%s\t%.2f%%\t%s\n",
			shortID(r.ID),
			r.RecordedAt.Local().Format(time.DateTime),
			strings.Join(r.Scenarios, ","),
			r.Mode,
			r.Requests,
			r.RPS,
			r.P95.Round(time.Millisecond),
			r.CheckRate*100,
			result,
		)
	}
	return w.Flush()
}

func printRun(cmd *cobra.Command, r *history.Run) {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(out, "Run:        %s\n", r.ID)
	fmt.Fprintf(out, "Recorded:   %s\n", r.RecordedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "Scenarios:  %s\n", strings.Join(r.Scenarios, ", "))
	fmt.Fprintf(out, "Mode:       %s\n", r.Mode)
	fmt.Fprintf(out, "Duration:   %s\n", r.Duration)
	fmt.Fprintf(out, "Iterations: %d (%d errors, %.1f/s)\n", r.Requests, r.Errors, r.RPS)
	fmt.Fprintf(out, "Latency:    p50=%s p95=%s p99=%s\n",
		r.P50.Round(time.Millisecond), r.P95.Round(time.Millisecond), r.P99.Round(time.Millisecond))
	fmt.Fprintf(out, "Checks:     %.2f%%\n", r.CheckRate*100)

	if len(r.Thresholds) > 0 {
		fmt.Fprintln(out, "Thresholds:")
		for _, t := range r.Thresholds {
			mark := green("✓")
			if !t.Passed {
				mark = red("✗")
			}
			fmt.Fprintf(out, "  %s %s %s (actual %s)\n", mark, t.Name, t.Expected, t.Actual)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
