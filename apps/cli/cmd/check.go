package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/core/config"
	"github.com/abdul-hamid-achik/mirrorperf/packages/output"
	"github.com/abdul-hamid-achik/mirrorperf/packages/rest"
	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
	"github.com/abdul-hamid-achik/mirrorperf/packages/validate"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [scenario...]",
	Short: "Run each scenario once and report its checks",
	Long: `Run every selected scenario exactly once and report whether its checks
pass. Useful to verify parameters before a load run.

Examples:
  mirrorperf check --base-url http://localhost:5551 -P DEFAULT_TOKEN_ID=0.0.1001
  mirrorperf check tokensIdBalancesTimestamp --schema -v
  mirrorperf check --discover -o junit --output-file check.xml
  mirrorperf check --watch`,
	RunE: checkCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	checkSchemaFlag     bool
	checkWatchFlag      bool
	checkVerboseFlag    bool
	checkOutputFlag     string
	checkOutputFileFlag string
)

func init() {
	checkCmd.Flags().BoolVar(&checkSchemaFlag, "schema", false, "Also validate response bodies against their JSON schema")
	checkCmd.Flags().BoolVarP(&checkWatchFlag, "watch", "w", false, "Re-run when the config or .env file changes")
	checkCmd.Flags().BoolVarP(&checkVerboseFlag, "verbose", "v", false, "Show URLs, statuses and passing checks")
	checkCmd.Flags().StringVarP(&checkOutputFlag, "output", "o", getEnvString("MIRRORPERF_OUTPUT", "console"), "Output format: console, json, junit, tap (env: MIRRORPERF_OUTPUT)")
	checkCmd.Flags().StringVar(&checkOutputFileFlag, "output-file", getEnvString("MIRRORPERF_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: MIRRORPERF_OUTPUT_FILE)")
}

func newFormatter(format string, w io.Writer, noColor bool) (output.Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	case "junit":
		return output.NewJUnitFormatter(output.JUnitWithWriter(w)), nil
	case "tap":
		return output.NewTAPFormatter(output.TAPWithWriter(w)), nil
	case "console", "":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(checkVerboseFlag),
			output.WithNoColor(noColor),
		), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use console, json, junit or tap)", format)
	}
}

// openOutput truncates path and returns it as the report writer, or
// fallback when path is empty.
func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, withExitCode(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
	}
	return f, f.Close, nil
}

func checkCommand(cmd *cobra.Command, args []string) error {
	scenarios, err := rest.Select(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	ctx, cancel := signalContext(nil)
	defer cancel()

	runOnce := func() error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// each run replaces the previous report
		outWriter, closeOutput, err := openOutput(checkOutputFileFlag, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeOutput()

		formatter, err := newFormatter(checkOutputFlag, outWriter, noColor(cfg))
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		formatter.FormatHeader(version)

		client, err := newHTTPClient(cfg)
		if err != nil {
			formatter.FormatError(err)
			return err
		}

		p, err := resolveParameters(ctx, cfg, client, scenarios)
		if err != nil {
			formatter.FormatError(err)
			return err
		}

		report := checkScenarios(ctx, client, p, scenarios, checkSchemaFlag)
		formatter.FormatReport(report)

		if flushable, ok := formatter.(output.Flushable); ok {
			if err := flushable.Flush(report.Duration); err != nil {
				return fmt.Errorf("error writing output: %w", err)
			}
		}

		return reportError(report)
	}

	err = runOnce()
	if !checkWatchFlag {
		return err
	}

	return watchConfig(ctx, cmd, runOnce)
}

// checkScenarios runs each scenario once, sequentially
func checkScenarios(ctx context.Context, client scenario.Client, p scenario.Parameters, scenarios []*scenario.Scenario, withSchema bool) *output.Report {
	start := time.Now()
	report := &output.Report{
		Target:   p.Get(scenario.BaseURLPrefix),
		Outcomes: make([]output.Outcome, 0, len(scenarios)),
	}

	for _, s := range scenarios {
		outcome := output.Outcome{Scenario: s.Name()}

		if err := s.Setup(p); err != nil {
			outcome.Err = err
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		result, err := s.Run(ctx, client, p)
		outcome.Result = result
		if err != nil {
			outcome.Err = err
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		if result.Response != nil {
			outcome.URL = result.Response.URL
		}

		if withSchema && result.Passed() {
			if schema, ok := rest.ResponseSchema(s.Name()); ok {
				outcome.SchemaErr = validate.MatchesSchema(result.Response, schema)
			}
		}

		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.Duration = time.Since(start)
	return report
}

// reportError maps a report onto the command's exit status: missing
// parameters first, then transport errors, then failed checks.
func reportError(report *output.Report) error {
	var missing, transport error
	for _, o := range report.Outcomes {
		switch {
		case o.Err == nil:
		case errors.Is(o.Err, scenario.ErrMissingParameters):
			if missing == nil {
				missing = o.Err
			}
		default:
			if transport == nil {
				transport = o.Err
			}
		}
	}

	switch {
	case missing != nil:
		return withExitCode(ExitConfigError, missing)
	case transport != nil:
		return withExitCode(ExitNetworkError, transport)
	case !report.Passed():
		_, failed, _ := report.Counts()
		return withExitCode(ExitTestFailure, fmt.Errorf("%d scenario(s) failed their checks", failed))
	}
	return nil
}

// watchedFiles returns the config and .env files whose changes trigger a re-run
func watchedFiles() []string {
	var files []string
	if configFlag != "" {
		files = append(files, configFlag)
	} else {
		files = append(files, config.ConfigFilenames...)
	}
	if envFileFlag != "" {
		files = append(files, envFileFlag)
	} else {
		files = append(files, defaultEnvFile)
	}

	for i, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			files[i] = abs
		}
	}
	return files
}

func watchConfig(ctx context.Context, cmd *cobra.Command, runOnce func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	files := watchedFiles()
	watched := make(map[string]bool, len(files))
	watchedDirs := make(map[string]bool)
	for _, file := range files {
		watched[file] = true
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to watch %s: %v\n", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	rerun := make(chan string, 1)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !watched[event.Name] || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- name:
				default:
				}
			})

		case name := <-rerun:
			fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running checks...\n\n", name)
			if err := runOnce(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: watcher error: %v\n", err)
		}
	}
}
