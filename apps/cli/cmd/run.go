package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/core/config"
	"github.com/abdul-hamid-achik/mirrorperf/packages/export/metrics"
	"github.com/abdul-hamid-achik/mirrorperf/packages/history"
	"github.com/abdul-hamid-achik/mirrorperf/packages/notify"
	"github.com/abdul-hamid-achik/mirrorperf/packages/output"
	"github.com/abdul-hamid-achik/mirrorperf/packages/rest"
	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
	"github.com/abdul-hamid-achik/mirrorperf/packages/stress"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Load-test mirror REST scenarios",
	Long: `Run scenarios under load. With no scenario names every registered
scenario runs, weighted by --weight.

Examples:
  # Constant rate against testnet
  mirrorperf run --base-url https://testnet.mirrornode.hedera.com -P DEFAULT_TOKEN_ID=0.0.1001

  # Virtual users mode with think time
  mirrorperf run tokensIdBalancesTimestamp --duration 2m --vus 50 --think-time 1s

  # Discover a token and timestamp from the mirror itself
  mirrorperf run --base-url http://localhost:5551 --discover

  # Using a config profile
  mirrorperf run --profile soak

  # Thresholds and reports for CI/CD
  mirrorperf run -d 1m -r 100 --threshold "checks>=99%,p95<500ms" --junit report.xml`,
	RunE: runCommand,
}

var errThresholdsFailed = errors.New("thresholds failed")

var (
	runDurationFlag   string
	runRateFlag       float64
	runVUsFlag        int
	runMaxVUsFlag     int
	runThinkTimeFlag  string
	runRampUpFlag     string
	runThresholdFlag  string
	runProfileFlag    string
	runWeightFlags    []string
	runNoProgressFlag bool
	runVerboseFlag    bool
	runJSONFlag       bool

	// Report and metrics flags
	runJSONOutFlag          string
	runJUnitFlag            string
	runPrometheusFileFlag   string
	runPrometheusListenFlag string
	runPrometheusPushFlag   string
	runPrometheusJobFlag    string

	// History flags
	runHistoryDBFlag string
	runNoHistoryFlag bool

	// Notification flags
	runNotifyFlag       string
	runNotifyOnFlag     string
	runSlackWebhookFlag string
	runSlackChannelFlag string
	runTeamsWebhookFlag string
)

func init() {
	addRunFlags(runCmd.Flags())
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&runDurationFlag, "duration", "d", "30s", "Test duration (e.g., 30s, 5m, 1h)")
	fs.Float64VarP(&runRateFlag, "rate", "r", 10, "Target iterations per second")
	fs.IntVarP(&runVUsFlag, "vus", "u", 0, "Number of virtual users (alternative to rate)")
	fs.IntVar(&runMaxVUsFlag, "max-vus", 100, "Maximum concurrent iterations")
	fs.StringVarP(&runThinkTimeFlag, "think-time", "t", "0s", "Think time between iterations per VU")
	fs.StringVar(&runRampUpFlag, "ramp-up", "0s", "Ramp-up time to reach target rate/VUs")
	fs.StringVar(&runThresholdFlag, "threshold", "", "Pass/fail thresholds (e.g., \"checks>=99%,p95<200ms,errors<0.1%\")")
	fs.StringVarP(&runProfileFlag, "profile", "p", "", "Load stress profile from config")
	fs.StringArrayVarP(&runWeightFlags, "weight", "w", nil, "Scenario weight as name=N (repeatable)")
	fs.BoolVar(&runNoProgressFlag, "no-progress", false, "Disable real-time progress display")
	fs.BoolVarP(&runVerboseFlag, "verbose", "v", false, "Verbose output with per-scenario breakdown")
	fs.BoolVar(&runJSONFlag, "json", false, "Print the summary as JSON on stdout")

	fs.StringVar(&runJSONOutFlag, "json-out", getEnvString("MIRRORPERF_JSON_OUT", ""), "Write metrics as JSON to a file (env: MIRRORPERF_JSON_OUT)")
	fs.StringVar(&runJUnitFlag, "junit", getEnvString("MIRRORPERF_JUNIT", ""), "Write checks and thresholds as JUnit XML to a file (env: MIRRORPERF_JUNIT)")
	fs.StringVar(&runPrometheusFileFlag, "prometheus", "", "Write metrics in the Prometheus text format to a file")
	fs.StringVar(&runPrometheusListenFlag, "prometheus-listen", "", "Serve final metrics on /metrics at this address until interrupted (e.g., :9464)")
	fs.StringVar(&runPrometheusPushFlag, "prometheus-push", getEnvString("MIRRORPERF_PUSHGATEWAY", ""), "Push final metrics to a Pushgateway URL (env: MIRRORPERF_PUSHGATEWAY)")
	fs.StringVar(&runPrometheusJobFlag, "prometheus-job", "mirrorperf", "Pushgateway job name")

	fs.StringVar(&runHistoryDBFlag, "history-db", getEnvString("MIRRORPERF_HISTORY_DB", ""), "SQLite file for run history (default from config) (env: MIRRORPERF_HISTORY_DB)")
	fs.BoolVar(&runNoHistoryFlag, "no-history", false, "Do not record this run in the history database")

	fs.StringVar(&runNotifyFlag, "notify", getEnvString("MIRRORPERF_NOTIFY", ""), "Notification service: slack, teams (env: MIRRORPERF_NOTIFY)")
	fs.StringVar(&runNotifyOnFlag, "notify-on", getEnvString("MIRRORPERF_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: MIRRORPERF_NOTIFY_ON)")
	fs.StringVar(&runSlackWebhookFlag, "slack-webhook", getEnvString("MIRRORPERF_SLACK_WEBHOOK", ""), "Slack webhook URL (env: MIRRORPERF_SLACK_WEBHOOK)")
	fs.StringVar(&runSlackChannelFlag, "slack-channel", getEnvString("MIRRORPERF_SLACK_CHANNEL", ""), "Slack channel override (env: MIRRORPERF_SLACK_CHANNEL)")
	fs.StringVar(&runTeamsWebhookFlag, "teams-webhook", getEnvString("MIRRORPERF_TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: MIRRORPERF_TEAMS_WEBHOOK)")
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stressCfg, profileScenarios, err := buildStressConfig(cmd.Flags(), cfg)
	if err != nil {
		return withExitCode(ExitParseError, err)
	}
	if err := stressCfg.Validate(); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("invalid config: %w", err))
	}

	names := args
	if len(names) == 0 {
		names = profileScenarios
	}
	scenarios, err := rest.Select(names)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	weights, err := parseWeights(runWeightFlags, scenarios)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	notifier, err := buildNotifier()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	client, err := newHTTPClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(func() {
		fmt.Fprintln(os.Stderr, "\nReceived interrupt, stopping gracefully...")
	})
	defer cancel()

	p, err := resolveParameters(ctx, cfg, client, scenarios)
	if err != nil {
		return err
	}

	// keep stdout clean for the JSON summary
	var reporterOut io.Writer = os.Stdout
	if runJSONFlag {
		reporterOut = os.Stderr
	}
	reporter := stress.NewReporter(
		stress.WithWriter(reporterOut),
		stress.WithNoColor(noColor(cfg)),
		stress.WithNoProgress(runNoProgressFlag),
		stress.WithVerbose(runVerboseFlag),
	)

	collector, prom, err := buildExporters()
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer func() {
		_ = collector.Close()
	}()

	runner := stress.NewRunner(stressCfg,
		stress.WithHTTPClient(client),
		stress.WithReporter(reporter),
		stress.WithParameters(p),
		stress.WithVersion(version),
	)
	for _, s := range scenarios {
		runner.AddScenario(s, weights[s.Name()])
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return classify(err)
	}

	if collector.Len() > 0 {
		if err := collector.Export(result); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to export metrics: %v\n", err)
		}
	}

	if prom != nil && runPrometheusFileFlag != "" {
		if err := writePrometheusText(runPrometheusFileFlag, prom); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write Prometheus metrics: %v\n", err)
		}
	}

	if runJUnitFlag != "" {
		if err := writeLoadJUnit(runJUnitFlag, result); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write JUnit report: %v\n", err)
		}
	}

	if !runNoHistoryFlag {
		path := historyPath(cfg, runHistoryDBFlag)
		if notifier != nil {
			if passed, ok := lastRunPassed(path); ok {
				notifier.SetLastState(passed)
			}
		}
		if err := saveHistory(path, result); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record run history: %v\n", err)
		}
	}

	if notifier != nil {
		if err := notifier.Notify(notify.FromResult(result, p.Get(scenario.BaseURLPrefix))); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to send notification: %v\n", err)
		}
	}

	if runJSONFlag {
		if err := reporter.JSONSummary(result); err != nil {
			return classify(err)
		}
	}

	if prom != nil && runPrometheusListenFlag != "" {
		reporter.Info("Serving metrics on http://%s/metrics (press Ctrl+C to stop)", listenHost(runPrometheusListenFlag))
		<-ctx.Done()
	}

	if !result.Passed {
		return withExitCode(ExitTestFailure, errThresholdsFailed)
	}

	return nil
}

// buildStressConfig layers CLI flags over the selected profile over the
// defaults. It also returns the profile's scenario list.
func buildStressConfig(flags *pflag.FlagSet, fileConfig *config.Config) (*stress.Config, []string, error) {
	cfg := stress.DefaultConfig()
	var scenarios []string

	if runProfileFlag != "" {
		profile, err := fileConfig.Profile(runProfileFlag)
		if err != nil {
			return nil, nil, withExitCode(ExitConfigError, err)
		}
		if err := applyProfile(cfg, profile); err != nil {
			return nil, nil, fmt.Errorf("profile %q: %w", runProfileFlag, err)
		}
		scenarios = profile.Scenarios
	}

	// Override with CLI flags only when explicitly set
	if flags.Changed("duration") {
		d, err := time.ParseDuration(runDurationFlag)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid duration: %w", err)
		}
		cfg.Duration = d
	}

	if flags.Changed("rate") {
		cfg.Rate = runRateFlag
		cfg.Mode = stress.RateMode
	}

	if runVUsFlag > 0 {
		cfg.VUs = runVUsFlag
		cfg.Mode = stress.VUMode
	}

	if flags.Changed("max-vus") {
		cfg.MaxVUs = runMaxVUsFlag
	}

	if flags.Changed("think-time") {
		d, err := time.ParseDuration(runThinkTimeFlag)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid think time: %w", err)
		}
		cfg.ThinkTime = d
	}

	if flags.Changed("ramp-up") {
		d, err := time.ParseDuration(runRampUpFlag)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid ramp-up: %w", err)
		}
		cfg.RampUp = d
	}

	if runThresholdFlag != "" {
		t, err := stress.ParseThresholds(runThresholdFlag)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid thresholds: %w", err)
		}
		cfg.Thresholds = t
	}

	return cfg, scenarios, nil
}

func applyProfile(cfg *stress.Config, profile *config.Profile) error {
	if profile.Duration != "" {
		d, err := time.ParseDuration(profile.Duration)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		cfg.Duration = d
	}
	if profile.Rate > 0 {
		cfg.Rate = profile.Rate
	}
	if profile.VUs > 0 {
		cfg.VUs = profile.VUs
		cfg.Mode = stress.VUMode
	}
	if profile.MaxVUs > 0 {
		cfg.MaxVUs = profile.MaxVUs
	}
	if profile.ThinkTime != "" {
		d, err := time.ParseDuration(profile.ThinkTime)
		if err != nil {
			return fmt.Errorf("invalid think time: %w", err)
		}
		cfg.ThinkTime = d
	}
	if profile.RampUp != "" {
		d, err := time.ParseDuration(profile.RampUp)
		if err != nil {
			return fmt.Errorf("invalid ramp-up: %w", err)
		}
		cfg.RampUp = d
	}
	if profile.Thresholds != "" {
		t, err := stress.ParseThresholds(profile.Thresholds)
		if err != nil {
			return fmt.Errorf("invalid thresholds: %w", err)
		}
		cfg.Thresholds = t
	}
	return nil
}

// parseWeights reads name=N pairs; unnamed scenarios keep weight 1
func parseWeights(pairs []string, scenarios []*scenario.Scenario) (map[string]int, error) {
	known := make(map[string]bool, len(scenarios))
	weights := make(map[string]int, len(scenarios))
	for _, s := range scenarios {
		known[s.Name()] = true
		weights[s.Name()] = 1
	}

	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid weight %q: expected name=N", pair)
		}
		if !known[name] {
			return nil, fmt.Errorf("weight for unselected scenario %q", name)
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid weight %q: must be a positive integer", pair)
		}
		weights[name] = n
	}

	return weights, nil
}

// buildExporters creates the exporters named by flags. The Prometheus
// exporter is also returned on its own, already started.
func buildExporters() (*metrics.Collector, *metrics.PrometheusExporter, error) {
	collector := metrics.NewCollector()

	if runJSONOutFlag != "" {
		collector.Add(metrics.NewJSONExporter(
			metrics.WithJSONFile(runJSONOutFlag),
			metrics.WithJSONVersion(version),
		))
	}

	if runPrometheusFileFlag == "" && runPrometheusListenFlag == "" && runPrometheusPushFlag == "" {
		return collector, nil, nil
	}

	var opts []metrics.PrometheusOption
	if runPrometheusListenFlag != "" {
		opts = append(opts, metrics.WithPrometheusHTTP(runPrometheusListenFlag))
	}
	if runPrometheusPushFlag != "" {
		opts = append(opts, metrics.WithPrometheusPush(runPrometheusPushFlag, runPrometheusJobFlag))
	}

	prom := metrics.NewPrometheusExporter(opts...)
	if err := prom.Start(); err != nil {
		return nil, nil, err
	}
	collector.Add(prom)

	return collector, prom, nil
}

func writePrometheusText(path string, prom *metrics.PrometheusExporter) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return prom.WriteText(f)
}

func writeLoadJUnit(path string, result *stress.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return output.WriteLoadJUnit(f, result)
}

func historyPath(cfg *config.Config, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg.HistoryDB != "" {
		return cfg.HistoryDB
	}
	return config.DefaultHistoryDB
}

func saveHistory(path string, result *stress.Result) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Save(result)
	return err
}

// lastRunPassed reports the outcome of the newest recorded run, if any
func lastRunPassed(path string) (bool, bool) {
	store, err := history.Open(path)
	if err != nil {
		return false, false
	}
	defer store.Close()

	runs, err := store.Recent(1)
	if err != nil || len(runs) == 0 {
		return false, false
	}
	return runs[0].Passed, true
}

// buildNotifier returns nil when --notify is not set
func buildNotifier() (*notify.Manager, error) {
	if runNotifyFlag == "" {
		return nil, nil
	}

	on, err := notify.ParseNotifyOn(runNotifyOnFlag)
	if err != nil {
		return nil, err
	}

	m := notify.NewManager(on)
	for _, service := range strings.Split(runNotifyFlag, ",") {
		switch strings.TrimSpace(service) {
		case "slack":
			if runSlackWebhookFlag == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			var opts []notify.SlackOption
			if runSlackChannelFlag != "" {
				opts = append(opts, notify.WithSlackChannel(runSlackChannelFlag))
			}
			m.AddNotifier(notify.NewSlackNotifier(runSlackWebhookFlag, opts...))
		case "teams":
			if runTeamsWebhookFlag == "" {
				return nil, fmt.Errorf("--teams-webhook is required when using --notify teams")
			}
			m.AddNotifier(notify.NewTeamsNotifier(runTeamsWebhookFlag))
		default:
			return nil, fmt.Errorf("unknown notification service %q (use slack or teams)", service)
		}
	}

	return m, nil
}

func listenHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
