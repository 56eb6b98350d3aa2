package stress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/http"
	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
	"github.com/google/uuid"
)

// ErrNoScenarios is returned by Run when nothing was added.
var ErrNoScenarios = errors.New("no scenarios to run")

var errChecksFailed = errors.New("checks failed")

// Runner executes stress tests
type Runner struct {
	config    *Config
	client    scenario.Client
	params    scenario.Parameters
	scheduler *Scheduler
	metrics   *Metrics
	reporter  *Reporter
	version   string
}

// RunnerOption configures the runner
type RunnerOption func(*Runner)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(client scenario.Client) RunnerOption {
	return func(r *Runner) {
		r.client = client
	}
}

// WithReporter sets the reporter
func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// WithParameters sets the parameters handed to every scenario
func WithParameters(params scenario.Parameters) RunnerOption {
	return func(r *Runner) {
		r.params = params.Clone()
	}
}

// WithVersion sets the version shown in the header
func WithVersion(version string) RunnerOption {
	return func(r *Runner) {
		r.version = version
	}
}

// NewRunner creates a new stress test runner
func NewRunner(config *Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		config:    config,
		metrics:   NewMetrics(),
		scheduler: NewScheduler(config),
		params:    scenario.Parameters{},
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.client == nil {
		r.client = http.NewClient()
	}

	if r.reporter == nil {
		r.reporter = NewReporter()
	}

	return r
}

// AddScenario registers a scenario with a relative weight (< 1 means 1)
func (r *Runner) AddScenario(s *scenario.Scenario, weight int) {
	cfg := DefaultScenarioConfig()
	if weight > 0 {
		cfg.Weight = weight
	}
	r.scheduler.AddScenario(s, cfg)
}

// Metrics returns the live metrics collector
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Run executes the stress test
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	scheduled := r.scheduler.Scenarios()
	if len(scheduled) == 0 {
		return nil, ErrNoScenarios
	}

	r.params.DeriveBaseURLPrefix()
	for _, sched := range scheduled {
		if err := sched.Scenario.Setup(r.params); err != nil {
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	thresholds, err := r.effectiveThresholds(scheduled)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()

	names := make([]string, len(scheduled))
	for i, sched := range scheduled {
		names[i] = sched.Name
	}
	r.reporter.Header(r.version, names, r.config)

	r.metrics.Start()

	ctx, cancel := context.WithTimeout(ctx, r.config.Duration)
	defer cancel()

	progressDone := make(chan struct{})
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		r.progressLoop(progressDone)
	}()

	if r.config.Mode == VUMode {
		r.runVUMode(ctx)
	} else {
		r.runRateMode(ctx)
	}

	r.metrics.Stop()
	close(progressDone)
	progressWG.Wait()

	r.reporter.ClearProgress()

	summary := r.metrics.GetSummary()
	var thresholdResults []ThresholdResult
	if thresholds.HasThresholds() {
		thresholdResults = EvaluateThresholds(summary, thresholds)
	}

	r.reporter.Summary(summary, thresholdResults)

	passed := true
	for _, tr := range thresholdResults {
		if !tr.Passed {
			passed = false
			break
		}
	}

	return &Result{
		RunID:      runID,
		Scenarios:  names,
		Config:     *r.config,
		Summary:    summary,
		Thresholds: thresholdResults,
		Passed:     passed,
	}, nil
}

// effectiveThresholds returns the configured thresholds, or the strictest
// union of the scenarios' own thresholds when none were configured.
func (r *Runner) effectiveThresholds(scheduled []*ScheduledScenario) (Thresholds, error) {
	if r.config.Thresholds.HasThresholds() {
		return r.config.Thresholds, nil
	}

	var merged Thresholds
	for _, sched := range scheduled {
		t, err := ParseThresholds(sched.Scenario.Options().Thresholds)
		if err != nil {
			return Thresholds{}, fmt.Errorf("scenario %q thresholds: %w", sched.Name, err)
		}
		merged.Tighten(t)
	}
	return merged, nil
}

// runRateMode executes the stress test in rate mode
func (r *Runner) runRateMode(ctx context.Context) {
	var wg sync.WaitGroup
	startTime := time.Now()

	var rampUpTicker *time.Ticker
	if r.config.RampUp > 0 {
		rampUpTicker = time.NewTicker(100 * time.Millisecond)
		defer rampUpTicker.Stop()
		r.scheduler.UpdateRate(r.config.Rate / 100)
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}

		if rampUpTicker != nil {
			select {
			case <-rampUpTicker.C:
				r.scheduler.UpdateRate(r.scheduler.GetCurrentRate(time.Since(startTime)))
			default:
			}
		}

		if err := r.scheduler.Wait(ctx); err != nil {
			wg.Wait()
			return
		}

		sched := r.scheduler.SelectScenario()
		if sched == nil {
			continue
		}

		if err := r.scheduler.Acquire(ctx); err != nil {
			wg.Wait()
			return
		}

		wg.Add(1)
		go func(sched *ScheduledScenario) {
			defer wg.Done()
			defer r.scheduler.Release()

			_ = r.execute(ctx, sched)
		}(sched)
	}
}

// runVUMode executes the stress test in virtual user mode
func (r *Runner) runVUMode(ctx context.Context) {
	pool := NewVUPool(r.scheduler, r.config, r.metrics, r.execute)
	pool.Start(ctx)

	if r.config.RampUp > 0 {
		rampUpTicker := time.NewTicker(100 * time.Millisecond)
		startTime := time.Now()

		go func() {
			defer rampUpTicker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-rampUpTicker.C:
					target := r.scheduler.GetCurrentVUs(time.Since(startTime))
					if target < 1 {
						target = 1
					}
					pool.Scale(target)
				}
			}
		}()
	}

	<-ctx.Done()

	pool.Stop()
	pool.Wait()
}

// execute runs one iteration and records its latency and checks. A
// transport error, a non-2xx status or a failed check counts as an error.
// Iterations cut off by the end of the run are not counted.
func (r *Runner) execute(ctx context.Context, sched *ScheduledScenario) error {
	start := time.Now()
	result, err := sched.Scenario.Run(ctx, r.client, r.params)
	if err != nil && ctx.Err() != nil {
		r.metrics.RecordInterrupted()
		return err
	}

	if result != nil {
		for _, c := range result.Checks {
			r.metrics.RecordCheck(sched.Name, c.Name, c.Passed)
		}
	}

	if err != nil {
		r.metrics.Record(sched.Name, time.Since(start), 0, err)
		return err
	}

	status := 0
	if result.Response != nil {
		status = result.Response.StatusCode
	}

	var recordErr error
	switch {
	case result.Response != nil && !result.Response.IsSuccess():
		recordErr = fmt.Errorf("HTTP %d", status)
	case !result.Passed():
		recordErr = errChecksFailed
	}

	r.metrics.Record(sched.Name, result.Duration, status, recordErr)
	return recordErr
}

// progressLoop updates the progress display until done is closed
func (r *Runner) progressLoop(done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			stats := r.metrics.GetCurrentStats()
			r.reporter.Progress(stats, r.config.Duration)

			r.metrics.AddTimePoint(r.metrics.Snapshot())
		}
	}
}

// Result holds the final result of a stress test
type Result struct {
	RunID      string
	Scenarios  []string
	Config     Config
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// HasThresholdFailures returns true if any thresholds failed
func (r *Result) HasThresholdFailures() bool {
	for _, tr := range r.Thresholds {
		if !tr.Passed {
			return true
		}
	}
	return false
}
