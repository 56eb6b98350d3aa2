package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/stress"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkName = "Tokens id balances timestamp OK"

func sampleResult() *stress.Result {
	m := stress.NewMetrics()
	m.Start()
	for i := 0; i < 9; i++ {
		m.Record("tokensIdBalancesTimestamp", 20*time.Millisecond, 200, nil)
		m.RecordCheck("tokensIdBalancesTimestamp", checkName, true)
	}
	m.Record("tokensIdBalancesTimestamp", 40*time.Millisecond, 404, errors.New("HTTP 404"))
	m.RecordCheck("tokensIdBalancesTimestamp", checkName, false)
	m.Stop()

	return &stress.Result{
		RunID:     "5f0c2c2e-8f5e-4d8b-9a55-6a1f0b4f7f00",
		Scenarios: []string{"tokensIdBalancesTimestamp"},
		Config:    stress.Config{Mode: stress.RateMode},
		Summary:   m.GetSummary(),
		Thresholds: []stress.ThresholdResult{
			{Name: "checks", Passed: false, Expected: ">= 99%", Actual: "90%"},
			{Name: "p95", Passed: true, Expected: "< 5s", Actual: "40ms"},
		},
		Passed: false,
	}
}

func TestFromSummary(t *testing.T) {
	agg := FromSummary(sampleResult().Summary)

	assert.Equal(t, int64(10), agg.TotalRequests)
	assert.Equal(t, int64(9), agg.SuccessCount)
	assert.Equal(t, int64(1), agg.FailureCount)
	assert.Equal(t, int64(9), agg.ChecksPassed)
	assert.InDelta(t, 0.9, agg.CheckRate, 0.0001)
	assert.Equal(t, map[int]int64{200: 9, 404: 1}, agg.StatusCodes)
	assert.InDelta(t, 20, agg.P50DurationMs, 1)

	require.Contains(t, agg.ByScenario, "tokensIdBalancesTimestamp")
	assert.Equal(t, int64(10), agg.ByScenario["tokensIdBalancesTimestamp"].TotalRequests)

	require.Len(t, agg.Checks, 1)
	assert.Equal(t, CheckAggregate{Name: checkName, Scenario: "tokensIdBalancesTimestamp", Passed: 9, Failed: 1}, agg.Checks[0])
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "metrics.json")

	exp := NewJSONExporter(WithJSONWriter(&buf), WithJSONFile(path), WithJSONVersion("1.2.3"))
	require.NoError(t, exp.Export(sampleResult()))
	require.NoError(t, exp.Close())

	var out JSONMetricsOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "5f0c2c2e-8f5e-4d8b-9a55-6a1f0b4f7f00", out.Metadata.RunID)
	assert.Equal(t, "rate", out.Metadata.Mode)
	assert.Equal(t, "1.2.3", out.Metadata.Version)
	assert.False(t, out.Metadata.Passed)
	assert.Equal(t, int64(10), out.Summary.TotalRequests)
	require.Len(t, out.Thresholds, 2)
	assert.Equal(t, "checks", out.Thresholds[0].Name)

	fromFile, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, buf.String(), string(fromFile))
}

func TestJSONExporterCompact(t *testing.T) {
	var buf bytes.Buffer
	exp := NewJSONExporter(WithJSONWriter(&buf), WithJSONPretty(false))
	require.NoError(t, exp.Export(sampleResult()))

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestPrometheusExporter(t *testing.T) {
	var buf bytes.Buffer
	exp := NewPrometheusExporter(WithPrometheusWriter(&buf))
	require.NoError(t, exp.Export(sampleResult()))

	assert.Equal(t, 9.0, testutil.ToFloat64(exp.checks.WithLabelValues("tokensIdBalancesTimestamp", checkName, "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exp.checks.WithLabelValues("tokensIdBalancesTimestamp", checkName, "fail")))
	assert.Equal(t, 9.0, testutil.ToFloat64(exp.iterations.WithLabelValues("tokensIdBalancesTimestamp", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exp.statuses.WithLabelValues("404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(exp.thresholds.WithLabelValues("checks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(exp.thresholds.WithLabelValues("p95")))
	assert.Equal(t, 0.0, testutil.ToFloat64(exp.passed))
	assert.Equal(t, 3, testutil.CollectAndCount(exp.latency))

	text := buf.String()
	assert.Contains(t, text, "# TYPE mirrorperf_checks gauge")
	assert.Contains(t, text, `mirrorperf_responses{status="200"} 9`)
	assert.Contains(t, text, `run_id="5f0c2c2e-8f5e-4d8b-9a55-6a1f0b4f7f00"`)
}

func TestPrometheusRegistryFamilies(t *testing.T) {
	exp := NewPrometheusExporter()
	require.NoError(t, exp.Export(sampleResult()))

	families, err := exp.Registry().Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		assert.Equal(t, dto.MetricType_GAUGE, mf.GetType(), mf.GetName())
		byName[mf.GetName()] = mf
	}

	require.Contains(t, byName, "mirrorperf_run_passed")
	assert.Equal(t, 0.0, byName["mirrorperf_run_passed"].GetMetric()[0].GetGauge().GetValue())

	require.Contains(t, byName, "mirrorperf_iteration_duration_seconds")
	var quantiles []string
	for _, m := range byName["mirrorperf_iteration_duration_seconds"].GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "quantile" {
				quantiles = append(quantiles, lp.GetValue())
			}
		}
	}
	assert.ElementsMatch(t, []string{"0.5", "0.95", "0.99"}, quantiles)
}

func TestPrometheusExporterResetsBetweenRuns(t *testing.T) {
	exp := NewPrometheusExporter()
	require.NoError(t, exp.Export(sampleResult()))

	second := sampleResult()
	second.RunID = "second"
	second.Summary.StatusCodes = map[int]int64{200: 3}
	require.NoError(t, exp.Export(second))

	assert.Equal(t, 1, testutil.CollectAndCount(exp.statuses))
	assert.Equal(t, 1, testutil.CollectAndCount(exp.runInfo))
	assert.Equal(t, 3.0, testutil.ToFloat64(exp.statuses.WithLabelValues("200")))
}

func TestPrometheusHandler(t *testing.T) {
	exp := NewPrometheusExporter()
	require.NoError(t, exp.Export(sampleResult()))

	server := httptest.NewServer(exp.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "mirrorperf_iterations_per_second")
}

func TestPrometheusPush(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	exp := NewPrometheusExporter(WithPrometheusPush(gateway.URL, "mirror-load"))
	require.NoError(t, exp.Export(sampleResult()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/mirror-load/run/5f0c2c2e-8f5e-4d8b-9a55-6a1f0b4f7f00", path)
}

type failingExporter struct{ closed bool }

func (f *failingExporter) Export(*stress.Result) error { return errors.New("export failed") }
func (f *failingExporter) Close() error {
	f.closed = true
	return nil
}

func TestCollector(t *testing.T) {
	var buf bytes.Buffer
	failing := &failingExporter{}

	c := NewCollector(NewJSONExporter(WithJSONWriter(&buf)))
	c.Add(failing)
	assert.Equal(t, 2, c.Len())

	err := c.Export(sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export failed")
	assert.NotEmpty(t, buf.String(), "other exporters still run")

	require.NoError(t, c.Close())
	assert.True(t, failing.closed)
}
