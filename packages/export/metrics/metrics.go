// Package metrics exports finished load test results to files and
// monitoring systems.
package metrics

import (
	"errors"
	"sort"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/stress"
)

// AggregateMetrics is the export view of a stress summary. Durations are in
// milliseconds.
type AggregateMetrics struct {
	TotalRequests int64   `json:"total_requests"`
	SuccessCount  int64   `json:"success_count"`
	FailureCount  int64   `json:"failure_count"`
	TimeoutCount  int64   `json:"interrupted_count"`
	RPS           float64 `json:"rps"`
	ErrorRate     float64 `json:"error_rate"`

	ChecksPassed int64   `json:"checks_passed"`
	ChecksFailed int64   `json:"checks_failed"`
	CheckRate    float64 `json:"check_rate"`

	MinDurationMs float64 `json:"min_duration_ms"`
	MaxDurationMs float64 `json:"max_duration_ms"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	P50DurationMs float64 `json:"p50_duration_ms"`
	P95DurationMs float64 `json:"p95_duration_ms"`
	P99DurationMs float64 `json:"p99_duration_ms"`

	StatusCodes map[int]int64                 `json:"status_codes"`
	ByScenario  map[string]*ScenarioAggregate `json:"by_scenario"`
	Checks      []CheckAggregate              `json:"checks"`
}

// ScenarioAggregate holds the totals for one scenario
type ScenarioAggregate struct {
	Name          string  `json:"name"`
	TotalRequests int64   `json:"total_requests"`
	SuccessCount  int64   `json:"success_count"`
	FailureCount  int64   `json:"failure_count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	P95DurationMs float64 `json:"p95_duration_ms"`
}

// CheckAggregate holds the totals for one named check
type CheckAggregate struct {
	Name     string `json:"name"`
	Scenario string `json:"scenario"`
	Passed   int64  `json:"passed"`
	Failed   int64  `json:"failed"`
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// FromSummary converts a stress summary for export
func FromSummary(s *stress.Summary) *AggregateMetrics {
	agg := &AggregateMetrics{
		TotalRequests: s.TotalRequests,
		SuccessCount:  s.SuccessCount,
		FailureCount:  s.ErrorCount,
		TimeoutCount:  s.TimeoutCount,
		RPS:           s.RPS,
		ErrorRate:     s.ErrorRate,
		ChecksPassed:  s.ChecksPassed,
		ChecksFailed:  s.ChecksFailed,
		CheckRate:     s.CheckRate,
		MinDurationMs: ms(s.Min),
		MaxDurationMs: ms(s.Max),
		AvgDurationMs: ms(s.Mean),
		P50DurationMs: ms(s.P50),
		P95DurationMs: ms(s.P95),
		P99DurationMs: ms(s.P99),
		StatusCodes:   make(map[int]int64, len(s.StatusCodes)),
		ByScenario:    make(map[string]*ScenarioAggregate, len(s.ScenarioBreakdown)),
		Checks:        make([]CheckAggregate, 0, len(s.Checks)),
	}

	for code, n := range s.StatusCodes {
		agg.StatusCodes[code] = n
	}

	for name, sc := range s.ScenarioBreakdown {
		agg.ByScenario[name] = &ScenarioAggregate{
			Name:          name,
			TotalRequests: sc.Total,
			SuccessCount:  sc.Success,
			FailureCount:  sc.Errors,
			AvgDurationMs: ms(sc.Mean),
			P95DurationMs: ms(sc.P95),
		}
	}

	for _, c := range s.Checks {
		agg.Checks = append(agg.Checks, CheckAggregate{
			Name:     c.Name,
			Scenario: c.Scenario,
			Passed:   c.Passed,
			Failed:   c.Failed,
		})
	}
	sort.Slice(agg.Checks, func(i, j int) bool { return agg.Checks[i].Name < agg.Checks[j].Name })

	return agg
}

// Exporter is the interface for metrics exporters
type Exporter interface {
	// Export exports a finished run to the target destination
	Export(result *stress.Result) error

	// Close closes the exporter and flushes any buffered data
	Close() error
}

// Collector fans a result out to several exporters
type Collector struct {
	exporters []Exporter
}

// NewCollector creates a new metrics collector
func NewCollector(exporters ...Exporter) *Collector {
	return &Collector{exporters: exporters}
}

// Add registers another exporter
func (c *Collector) Add(exp Exporter) {
	c.exporters = append(c.exporters, exp)
}

// Len returns the number of exporters
func (c *Collector) Len() int {
	return len(c.exporters)
}

// Export hands result to every exporter and joins their errors
func (c *Collector) Export(result *stress.Result) error {
	var errs []error
	for _, exp := range c.exporters {
		if err := exp.Export(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all exporters
func (c *Collector) Close() error {
	var errs []error
	for _, exp := range c.exporters {
		if err := exp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
