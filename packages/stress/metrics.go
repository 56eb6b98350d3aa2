package stress

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// histogram bounds in microseconds: 1us to 60s
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics collects and aggregates stress test metrics
type Metrics struct {
	mu sync.RWMutex

	// Counters
	totalRequests   atomic.Int64
	successRequests atomic.Int64
	errorRequests   atomic.Int64
	timeoutRequests atomic.Int64
	checksPassed    atomic.Int64
	checksFailed    atomic.Int64

	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram

	// Per-scenario metrics
	scenarioMetrics map[string]*ScenarioMetrics

	// Per-check counters keyed by checkKey(scenario, check)
	checkMetrics map[string]*CheckMetrics

	statusCodes map[int]int64

	// Time series for real-time display
	timeSeries    []TimePoint
	lastTimePoint time.Time

	startTime time.Time
	endTime   time.Time

	activeVUs atomic.Int32
}

// ScenarioMetrics holds metrics for a specific scenario
type ScenarioMetrics struct {
	Name      string
	Total     atomic.Int64
	Success   atomic.Int64
	Errors    atomic.Int64
	Histogram *hdrhistogram.Histogram
	mu        sync.Mutex
}

// CheckMetrics counts outcomes of one named check
type CheckMetrics struct {
	Name     string
	Scenario string
	Passed   atomic.Int64
	Failed   atomic.Int64
}

// TimePoint represents a point in time for the time series
type TimePoint struct {
	Timestamp time.Time
	Requests  int64
	Errors    int64
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	ActiveVUs int32
	RPS       float64
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		histogram:       hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		scenarioMetrics: make(map[string]*ScenarioMetrics),
		checkMetrics:    make(map[string]*CheckMetrics),
		statusCodes:     make(map[int]int64),
		timeSeries:      make([]TimePoint, 0, 1000),
	}
}

// Start marks the beginning of the test
func (m *Metrics) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startTime = time.Now()
	m.lastTimePoint = m.startTime
}

// Stop marks the end of the test
func (m *Metrics) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endTime = time.Now()
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		return minLatencyUs
	}
	if us > maxLatencyUs {
		return maxLatencyUs
	}
	return us
}

// Record records an iteration result. status is 0 when no response arrived.
func (m *Metrics) Record(name string, duration time.Duration, status int, err error) {
	m.totalRequests.Add(1)

	if err != nil {
		m.errorRequests.Add(1)
	} else {
		m.successRequests.Add(1)
	}

	m.mu.Lock()
	_ = m.histogram.RecordValue(clampLatency(duration))
	if status > 0 {
		m.statusCodes[status]++
	}
	m.mu.Unlock()

	if name != "" {
		sm := m.scenario(name)
		sm.Total.Add(1)
		if err != nil {
			sm.Errors.Add(1)
		} else {
			sm.Success.Add(1)
		}

		sm.mu.Lock()
		_ = sm.Histogram.RecordValue(clampLatency(duration))
		sm.mu.Unlock()
	}
}

// RecordInterrupted counts an iteration cut short by the end of the run.
// It has no outcome, so totals, errors and checks are left alone.
func (m *Metrics) RecordInterrupted() {
	m.timeoutRequests.Add(1)
}

// RecordCheck records the outcome of a named check
func (m *Metrics) RecordCheck(scenarioName, checkName string, passed bool) {
	if passed {
		m.checksPassed.Add(1)
	} else {
		m.checksFailed.Add(1)
	}

	key := checkKey(scenarioName, checkName)

	m.mu.Lock()
	cm, ok := m.checkMetrics[key]
	if !ok {
		cm = &CheckMetrics{Name: checkName, Scenario: scenarioName}
		m.checkMetrics[key] = cm
	}
	m.mu.Unlock()

	if passed {
		cm.Passed.Add(1)
	} else {
		cm.Failed.Add(1)
	}
}

func checkKey(scenarioName, checkName string) string {
	return scenarioName + "\x00" + checkName
}

func (m *Metrics) scenario(name string) *ScenarioMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm, ok := m.scenarioMetrics[name]
	if !ok {
		sm = &ScenarioMetrics{
			Name:      name,
			Histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		}
		m.scenarioMetrics[name] = sm
	}
	return sm
}

// SetActiveVUs sets the current number of active virtual users
func (m *Metrics) SetActiveVUs(n int32) {
	m.activeVUs.Store(n)
}

// IncrementActiveVUs increments active VU count
func (m *Metrics) IncrementActiveVUs() {
	m.activeVUs.Add(1)
}

// DecrementActiveVUs decrements active VU count
func (m *Metrics) DecrementActiveVUs() {
	m.activeVUs.Add(-1)
}

// Snapshot captures current metrics for time series
func (m *Metrics) Snapshot() TimePoint {
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := now.Sub(m.lastTimePoint).Seconds()
	if elapsed == 0 {
		elapsed = 1
	}

	total := m.totalRequests.Load()
	prevTotal := int64(0)
	if len(m.timeSeries) > 0 {
		prevTotal = m.timeSeries[len(m.timeSeries)-1].Requests
	}

	return TimePoint{
		Timestamp: now,
		Requests:  total,
		Errors:    m.errorRequests.Load(),
		P50:       quantile(m.histogram, 50),
		P95:       quantile(m.histogram, 95),
		P99:       quantile(m.histogram, 99),
		ActiveVUs: m.activeVUs.Load(),
		RPS:       float64(total-prevTotal) / elapsed,
	}
}

// AddTimePoint adds a time point to the series
func (m *Metrics) AddTimePoint(point TimePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timeSeries = append(m.timeSeries, point)
	m.lastTimePoint = point.Timestamp
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

// Summary is the final metrics summary
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	TimeoutCount  int64 // iterations cut off by the end of the run

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	// Check accounting
	ChecksPassed int64
	ChecksFailed int64
	CheckRate    float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	StatusCodes map[int]int64

	ScenarioBreakdown map[string]*ScenarioSummary
	Checks            []CheckSummary

	TimeSeries []TimePoint
}

// ScenarioSummary holds summary for a specific scenario
type ScenarioSummary struct {
	Name    string
	Total   int64
	Success int64
	Errors  int64
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
	Mean    time.Duration
}

// CheckSummary holds the totals for one named check
type CheckSummary struct {
	Name     string
	Scenario string
	Passed   int64
	Failed   int64
}

// Rate returns the pass rate, 0 when the check never ran.
func (c CheckSummary) Rate() float64 {
	total := c.Passed + c.Failed
	if total == 0 {
		return 0
	}
	return float64(c.Passed) / float64(total)
}

// GetSummary returns the metrics summary
func (m *Metrics) GetSummary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	total := m.totalRequests.Load()
	success := m.successRequests.Load()
	errors := m.errorRequests.Load()
	passed := m.checksPassed.Load()
	failed := m.checksFailed.Load()

	summary := &Summary{
		Duration:      duration,
		TotalRequests: total,
		SuccessCount:  success,
		ErrorCount:    errors,
		TimeoutCount:  m.timeoutRequests.Load(),
		ChecksPassed:  passed,
		ChecksFailed:  failed,
		P50:           quantile(m.histogram, 50),
		P95:           quantile(m.histogram, 95),
		P99:           quantile(m.histogram, 99),
		Min:           time.Duration(m.histogram.Min()) * time.Microsecond,
		Max:           time.Duration(m.histogram.Max()) * time.Microsecond,
		Mean:          time.Duration(m.histogram.Mean()) * time.Microsecond,
		StdDev:        time.Duration(m.histogram.StdDev()) * time.Microsecond,
		StatusCodes:   make(map[int]int64, len(m.statusCodes)),
		TimeSeries:    append([]TimePoint(nil), m.timeSeries...),
	}

	if duration.Seconds() > 0 {
		summary.RPS = float64(total) / duration.Seconds()
	}
	if total > 0 {
		summary.SuccessRate = float64(success) / float64(total)
		summary.ErrorRate = float64(errors) / float64(total)
	}
	if passed+failed > 0 {
		summary.CheckRate = float64(passed) / float64(passed+failed)
	}

	for code, n := range m.statusCodes {
		summary.StatusCodes[code] = n
	}

	summary.ScenarioBreakdown = make(map[string]*ScenarioSummary, len(m.scenarioMetrics))
	for name, sm := range m.scenarioMetrics {
		sm.mu.Lock()
		summary.ScenarioBreakdown[name] = &ScenarioSummary{
			Name:    name,
			Total:   sm.Total.Load(),
			Success: sm.Success.Load(),
			Errors:  sm.Errors.Load(),
			P50:     quantile(sm.Histogram, 50),
			P95:     quantile(sm.Histogram, 95),
			P99:     quantile(sm.Histogram, 99),
			Mean:    time.Duration(sm.Histogram.Mean()) * time.Microsecond,
		}
		sm.mu.Unlock()
	}

	summary.Checks = make([]CheckSummary, 0, len(m.checkMetrics))
	for _, cm := range m.checkMetrics {
		summary.Checks = append(summary.Checks, CheckSummary{
			Name:     cm.Name,
			Scenario: cm.Scenario,
			Passed:   cm.Passed.Load(),
			Failed:   cm.Failed.Load(),
		})
	}
	sort.Slice(summary.Checks, func(i, j int) bool {
		a, b := summary.Checks[i], summary.Checks[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Scenario < b.Scenario
	})

	return summary
}

// CurrentStats returns current statistics for real-time display
type CurrentStats struct {
	Elapsed   time.Duration
	Total     int64
	Success   int64
	Errors    int64
	RPS       float64
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
	ActiveVUs int32
	ErrorRate float64
	CheckRate float64
}

// GetCurrentStats returns current statistics
func (m *Metrics) GetCurrentStats() CurrentStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.startTime)
	total := m.totalRequests.Load()
	errors := m.errorRequests.Load()
	passed := m.checksPassed.Load()
	failed := m.checksFailed.Load()

	stats := CurrentStats{
		Elapsed:   elapsed,
		Total:     total,
		Success:   m.successRequests.Load(),
		Errors:    errors,
		P50:       quantile(m.histogram, 50),
		P95:       quantile(m.histogram, 95),
		P99:       quantile(m.histogram, 99),
		Max:       time.Duration(m.histogram.Max()) * time.Microsecond,
		ActiveVUs: m.activeVUs.Load(),
	}

	if elapsed.Seconds() > 0 {
		stats.RPS = float64(total) / elapsed.Seconds()
	}
	if total > 0 {
		stats.ErrorRate = float64(errors) / float64(total)
	}
	if passed+failed > 0 {
		stats.CheckRate = float64(passed) / float64(passed+failed)
	}

	return stats
}

// EvaluateThresholds evaluates the thresholds against the summary
func (m *Metrics) EvaluateThresholds(t Thresholds) []ThresholdResult {
	return EvaluateThresholds(m.GetSummary(), t)
}

// EvaluateThresholds checks a finished summary against t.
func EvaluateThresholds(summary *Summary, t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	latency := func(name, metric string, limit, actual time.Duration) {
		if limit > 0 {
			strict := t.IsStrict(metric)
			results = append(results, ThresholdResult{
				Name:     name,
				Passed:   belowLimit(float64(actual), float64(limit), strict),
				Expected: upperOp(strict) + limit.String(),
				Actual:   actual.String(),
			})
		}
	}

	latency("p50", MetricP50, t.P50, summary.P50)
	latency("p95", MetricP95, t.P95, summary.P95)
	latency("p99", MetricP99, t.P99, summary.P99)
	latency("max latency", MetricMax, t.MaxLatency, summary.Max)

	if t.ErrorRate > 0 {
		strict := t.IsStrict(MetricErrors)
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   belowLimit(summary.ErrorRate, t.ErrorRate, strict),
			Expected: upperOp(strict) + formatPercent(t.ErrorRate),
			Actual:   formatPercent(summary.ErrorRate),
		})
	}

	if t.MinRPS > 0 {
		strict := t.IsStrict(MetricRPS)
		results = append(results, ThresholdResult{
			Name:     "min RPS",
			Passed:   aboveLimit(summary.RPS, t.MinRPS, strict),
			Expected: lowerOp(strict) + formatFloat(t.MinRPS),
			Actual:   formatFloat(summary.RPS),
		})
	}

	if t.MinCheckRate > 0 {
		strict := t.IsStrict(MetricChecks)
		results = append(results, ThresholdResult{
			Name:     "checks",
			Passed:   summary.ChecksPassed+summary.ChecksFailed > 0 && aboveLimit(summary.CheckRate, t.MinCheckRate, strict),
			Expected: lowerOp(strict) + formatPercent(t.MinCheckRate),
			Actual:   formatPercent(summary.CheckRate),
		})
	}

	return results
}

func belowLimit(actual, limit float64, strict bool) bool {
	if strict {
		return actual < limit
	}
	return actual <= limit
}

func aboveLimit(actual, limit float64, strict bool) bool {
	if strict {
		return actual > limit
	}
	return actual >= limit
}

func upperOp(strict bool) string {
	if strict {
		return "< "
	}
	return "<= "
}

func lowerOp(strict bool) string {
	if strict {
		return "> "
	}
	return ">= "
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
