// Package stress runs mirror REST scenarios under load. It supports
// rate-based and virtual user-based load generation with real-time metrics
// collection, check accounting, threshold evaluation, and reporting.
package stress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ExecutionMode defines how the stress test schedules iterations
type ExecutionMode int

const (
	// RateMode starts iterations at a constant rate (iterations per second)
	RateMode ExecutionMode = iota
	// VUMode uses virtual users that loop with think time between iterations
	VUMode
)

func (m ExecutionMode) String() string {
	if m == VUMode {
		return "vus"
	}
	return "rate"
}

// Config holds all configuration for a stress test
type Config struct {
	Mode       ExecutionMode
	Duration   time.Duration
	Rate       float64       // iterations per second (RateMode)
	VUs        int           // number of virtual users (VUMode)
	MaxVUs     int           // max concurrent iterations
	ThinkTime  time.Duration // time between iterations per VU
	RampUp     time.Duration // ramp-up time
	Thresholds Thresholds    // pass/fail thresholds
}

// Thresholds defines pass/fail criteria for the stress test. A zero limit
// is unset. Limits include the bound itself unless the metric is in Strict.
type Thresholds struct {
	P50          time.Duration // 50th percentile latency
	P95          time.Duration // 95th percentile latency
	P99          time.Duration // 99th percentile latency
	MaxLatency   time.Duration // maximum allowed latency
	ErrorRate    float64       // maximum error rate (0.0 - 1.0)
	MinRPS       float64       // minimum iterations per second
	MinCheckRate float64       // minimum check pass rate (0.0 - 1.0)

	// Strict holds the metrics written with < or >, keyed by the
	// Metric* names.
	Strict map[string]bool
}

// Threshold metric names, as used in Thresholds.Strict
const (
	MetricP50    = "p50"
	MetricP95    = "p95"
	MetricP99    = "p99"
	MetricMax    = "max"
	MetricErrors = "errors"
	MetricRPS    = "rps"
	MetricChecks = "checks"
)

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:     RateMode,
		Duration: 30 * time.Second,
		Rate:     10,
		MaxVUs:   100,
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}

	if c.Mode == RateMode && c.Rate <= 0 {
		return fmt.Errorf("rate must be positive in rate mode")
	}

	if c.Mode == VUMode && c.VUs <= 0 {
		return fmt.Errorf("VUs must be positive in VU mode")
	}

	if c.MaxVUs < 1 {
		return fmt.Errorf("maxVUs must be at least 1")
	}

	if c.RampUp < 0 {
		return fmt.Errorf("rampUp cannot be negative")
	}

	if c.RampUp > c.Duration {
		return fmt.Errorf("rampUp cannot exceed duration")
	}

	if c.Thresholds.MinCheckRate > 1 {
		return fmt.Errorf("check rate threshold cannot exceed 100%%")
	}

	return nil
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a threshold string like "p95<200ms,errors<0.1%,checks>=99%"
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds

	if s == "" {
		return t, nil
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if err := parseThresholdPart(part, &t); err != nil {
			return t, err
		}
	}

	return t, nil
}

func parseThresholdPart(part string, t *Thresholds) error {
	matches := thresholdPattern.FindStringSubmatch(part)
	if len(matches) != 4 {
		return fmt.Errorf("invalid threshold format: %s", part)
	}

	metric := strings.ToLower(matches[1])
	op := matches[2]
	valueStr := strings.TrimSpace(matches[3])
	strict := op == "<" || op == ">"

	switch metric {
	case "p50", "p95", "p99", "max", "maxlatency":
		d, err := time.ParseDuration(valueStr)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", metric, valueStr)
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("%s threshold must use < or <=", metric)
		}
		if d <= 0 {
			return fmt.Errorf("%s threshold must be greater than zero", metric)
		}
		switch metric {
		case "p50":
			t.P50 = d
		case "p95":
			t.P95 = d
		case "p99":
			t.P99 = d
		default:
			metric = MetricMax
			t.MaxLatency = d
		}
		t.setStrict(metric, strict)

	case "errors", "error", "errorrate":
		f, err := parseRate(valueStr)
		if err != nil {
			return fmt.Errorf("invalid error rate: %s", valueStr)
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("error rate threshold must use < or <=")
		}
		if f <= 0 {
			return fmt.Errorf("error rate threshold must be greater than zero")
		}
		t.ErrorRate = f
		t.setStrict(MetricErrors, strict)

	case "checks", "check", "checkrate":
		f, err := parseRate(valueStr)
		if err != nil {
			return fmt.Errorf("invalid check rate: %s", valueStr)
		}
		if op != ">" && op != ">=" {
			return fmt.Errorf("check rate threshold must use > or >=")
		}
		if f <= 0 {
			return fmt.Errorf("check rate threshold must be greater than zero")
		}
		t.MinCheckRate = f
		t.setStrict(MetricChecks, strict)

	case "rps", "rate":
		f, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return fmt.Errorf("invalid RPS: %s", valueStr)
		}
		if op != ">" && op != ">=" {
			return fmt.Errorf("RPS threshold must use > or >=")
		}
		if f <= 0 {
			return fmt.Errorf("RPS threshold must be greater than zero")
		}
		t.MinRPS = f
		t.setStrict(MetricRPS, strict)

	default:
		return fmt.Errorf("unknown threshold metric: %s", metric)
	}

	return nil
}

// parseRate accepts "0.1%" or a decimal like "0.001".
func parseRate(s string) (float64, error) {
	percent := strings.HasSuffix(s, "%")
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, err
	}
	if percent {
		f = f / 100
	}
	return f, nil
}

// HasThresholds returns true if any thresholds are configured
func (t *Thresholds) HasThresholds() bool {
	return t.P50 > 0 || t.P95 > 0 || t.P99 > 0 || t.MaxLatency > 0 ||
		t.ErrorRate > 0 || t.MinRPS > 0 || t.MinCheckRate > 0
}

// IsStrict reports whether metric's limit excludes the bound itself
func (t Thresholds) IsStrict(metric string) bool {
	return t.Strict[metric]
}

func (t *Thresholds) setStrict(metric string, strict bool) {
	if !strict {
		delete(t.Strict, metric)
		return
	}
	if t.Strict == nil {
		t.Strict = make(map[string]bool)
	}
	t.Strict[metric] = true
}

// Tighten merges other into t, keeping the stricter bound of each metric.
// At equal limits a strict bound beats an inclusive one.
func (t *Thresholds) Tighten(other Thresholds) {
	latencies := []struct {
		metric string
		dst    *time.Duration
		src    time.Duration
	}{
		{MetricP50, &t.P50, other.P50},
		{MetricP95, &t.P95, other.P95},
		{MetricP99, &t.P99, other.P99},
		{MetricMax, &t.MaxLatency, other.MaxLatency},
	}
	for _, l := range latencies {
		if tighterUpper(float64(*l.dst), t.IsStrict(l.metric), float64(l.src), other.IsStrict(l.metric)) {
			*l.dst = l.src
			t.setStrict(l.metric, other.IsStrict(l.metric))
		}
	}

	if tighterUpper(t.ErrorRate, t.IsStrict(MetricErrors), other.ErrorRate, other.IsStrict(MetricErrors)) {
		t.ErrorRate = other.ErrorRate
		t.setStrict(MetricErrors, other.IsStrict(MetricErrors))
	}
	if tighterLower(t.MinRPS, t.IsStrict(MetricRPS), other.MinRPS, other.IsStrict(MetricRPS)) {
		t.MinRPS = other.MinRPS
		t.setStrict(MetricRPS, other.IsStrict(MetricRPS))
	}
	if tighterLower(t.MinCheckRate, t.IsStrict(MetricChecks), other.MinCheckRate, other.IsStrict(MetricChecks)) {
		t.MinCheckRate = other.MinCheckRate
		t.setStrict(MetricChecks, other.IsStrict(MetricChecks))
	}
}

// tighterUpper reports whether upper bound b replaces a; zero is unset
func tighterUpper(a float64, aStrict bool, b float64, bStrict bool) bool {
	if b <= 0 {
		return false
	}
	return a <= 0 || b < a || (b == a && bStrict && !aStrict)
}

// tighterLower reports whether lower bound b replaces a; zero is unset
func tighterLower(a float64, aStrict bool, b float64, bStrict bool) bool {
	if b <= 0 {
		return false
	}
	return a <= 0 || b > a || (b == a && bStrict && !aStrict)
}

// ThresholdResult holds the result of evaluating a threshold
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}

// ScenarioConfig holds per-scenario scheduling configuration
type ScenarioConfig struct {
	Weight int           // relative weight for scenario selection (default 1)
	Think  time.Duration // think time after each iteration, overrides Config.ThinkTime
}

// DefaultScenarioConfig returns default scenario configuration
func DefaultScenarioConfig() *ScenarioConfig {
	return &ScenarioConfig{
		Weight: 1,
	}
}
