package stress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/http"
	"github.com/abdul-hamid-achik/mirrorperf/packages/mock"
	"github.com/abdul-hamid-achik/mirrorperf/packages/rest"
	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mirrorParams(baseURL string) scenario.Parameters {
	return scenario.Parameters{
		scenario.BaseURL:                      baseURL,
		scenario.DefaultTokenID:               "0.0.1001",
		scenario.DefaultTokenBalanceTimestamp: mock.DefaultSnapshotTimestamp,
	}
}

func quietReporter() *Reporter {
	return NewReporter(WithNoProgress(true), WithNoColor(true), WithWriter(&bytes.Buffer{}))
}

func TestRunnerIntegration(t *testing.T) {
	server := httptest.NewServer(mock.NewServer().Handler())
	defer server.Close()

	cfg := &Config{
		Mode:     RateMode,
		Duration: 2 * time.Second,
		Rate:     10,
		MaxVUs:   10,
	}

	var out bytes.Buffer
	runner := NewRunner(cfg,
		WithHTTPClient(http.NewClient()),
		WithReporter(NewReporter(WithNoProgress(true), WithNoColor(true), WithWriter(&out))),
		WithParameters(mirrorParams(server.URL)),
	)
	runner.AddScenario(rest.TokensIDBalancesTimestamp(), 1)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	_, err = uuid.Parse(result.RunID)
	assert.NoError(t, err, "run id should be a uuid")
	assert.Equal(t, []string{"tokensIdBalancesTimestamp"}, result.Scenarios)

	assert.True(t, result.Summary.TotalRequests > 0, "should have made requests")
	assert.Equal(t, int64(0), result.Summary.ErrorCount, "should have no errors")
	assert.True(t, result.Summary.ChecksPassed > 0)
	assert.Equal(t, int64(0), result.Summary.ChecksFailed)
	assert.InDelta(t, 1.0, result.Summary.CheckRate, 0.0001)
	assert.True(t, result.Passed, "test should pass")

	// default scenario thresholds apply when none are configured
	names := make([]string, 0, len(result.Thresholds))
	for _, tr := range result.Thresholds {
		names = append(names, tr.Name)
	}
	assert.ElementsMatch(t, []string{"p95", "checks"}, names)

	assert.Contains(t, out.String(), "Scenarios: tokensIdBalancesTimestamp")
	assert.Contains(t, out.String(), "Tokens id balances timestamp OK")

	t.Logf("Made %d requests in %v (%.1f req/s)",
		result.Summary.TotalRequests,
		result.Summary.Duration,
		result.Summary.RPS)
}

func TestRunnerMissingParameters(t *testing.T) {
	client := &countingClient{}

	cfg := &Config{Mode: RateMode, Duration: time.Second, Rate: 10, MaxVUs: 10}
	runner := NewRunner(cfg,
		WithHTTPClient(client),
		WithReporter(quietReporter()),
		WithParameters(scenario.Parameters{scenario.BaseURL: "http://mirror.local"}),
	)
	runner.AddScenario(rest.TokensIDBalancesTimestamp(), 1)

	result, err := runner.Run(context.Background())
	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, scenario.ErrMissingParameters)
	assert.Contains(t, err.Error(), scenario.DefaultTokenID)
	assert.Equal(t, int64(0), client.calls.Load(), "no traffic before setup passes")
}

func TestRunnerNoScenarios(t *testing.T) {
	runner := NewRunner(DefaultConfig(), WithReporter(quietReporter()))

	_, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoScenarios)
}

func TestRunnerInvalidConfig(t *testing.T) {
	runner := NewRunner(&Config{Mode: RateMode, Rate: 10, MaxVUs: 1}, WithReporter(quietReporter()))
	runner.AddScenario(rest.TokensIDBalancesTimestamp(), 1)

	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRunnerFailedChecks(t *testing.T) {
	server := httptest.NewServer(mock.NewServer().Handler())
	defer server.Close()

	// the token exists but did not exist yet at this timestamp
	params := mirrorParams(server.URL)
	params[scenario.DefaultTokenBalanceTimestamp] = "1500000000.000000000"

	cfg := &Config{
		Mode:     RateMode,
		Duration: 1 * time.Second,
		Rate:     5,
		MaxVUs:   5,
	}

	runner := NewRunner(cfg, WithReporter(quietReporter()), WithParameters(params))
	runner.AddScenario(rest.TokensIDBalancesTimestamp(), 1)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Summary.TotalRequests > 0)
	assert.Equal(t, result.Summary.TotalRequests, result.Summary.ErrorCount, "empty balances count as errors")
	assert.Equal(t, int64(0), result.Summary.ChecksPassed)
	assert.Positive(t, result.Summary.StatusCodes[200])
	assert.Zero(t, result.Summary.StatusCodes[404])
	assert.False(t, result.Passed)
	assert.True(t, result.HasThresholdFailures())
}

func TestRunnerWithErrors(t *testing.T) {
	server := httptest.NewServer(mock.NewServer().Handler())
	defer server.Close()

	params := mirrorParams(server.URL)
	params[scenario.DefaultTokenID] = "0.0.9999"

	cfg := &Config{
		Mode:     RateMode,
		Duration: 1 * time.Second,
		Rate:     5,
		MaxVUs:   5,
	}

	runner := NewRunner(cfg, WithReporter(quietReporter()), WithParameters(params))
	runner.AddScenario(rest.TokensIDBalancesTimestamp(), 1)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	// All requests should be errors (404 is not success)
	assert.True(t, result.Summary.ErrorCount > 0, "should have errors")
	assert.Equal(t, result.Summary.TotalRequests, result.Summary.ErrorCount, "all requests should be errors")
	assert.Positive(t, result.Summary.StatusCodes[404])
	assert.Zero(t, result.Summary.StatusCodes[200])
}

func TestRunnerWithThresholds(t *testing.T) {
	server := httptest.NewServer(mock.NewServer().Handler())
	defer server.Close()

	cfg := &Config{
		Mode:     RateMode,
		Duration: 1 * time.Second,
		Rate:     10,
		MaxVUs:   10,
		Thresholds: Thresholds{
			P95:       1 * time.Second,
			ErrorRate: 0.1,
		},
	}

	runner := NewRunner(cfg, WithReporter(quietReporter()), WithParameters(mirrorParams(server.URL)))
	runner.AddScenario(rest.TokensIDBalancesTimestamp(), 1)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	// configured thresholds replace the scenario defaults
	require.Len(t, result.Thresholds, 2)
	assert.True(t, result.Passed, "thresholds should pass")
	assert.False(t, result.HasThresholdFailures())
}

func TestRunnerVUMode(t *testing.T) {
	server := httptest.NewServer(mock.NewServer().Handler())
	defer server.Close()

	cfg := &Config{
		Mode:      VUMode,
		Duration:  1 * time.Second,
		VUs:       3,
		MaxVUs:    10,
		ThinkTime: 50 * time.Millisecond,
	}

	runner := NewRunner(cfg, WithReporter(quietReporter()), WithParameters(mirrorParams(server.URL)))
	runner.AddScenario(rest.TokensIDBalancesTimestamp(), 1)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Summary.TotalRequests > 0, "should have made requests")
	assert.Equal(t, VUMode, result.Config.Mode)
	t.Logf("VU mode: %d requests with %d VUs", result.Summary.TotalRequests, cfg.VUs)
}

func TestRunnerWithWeightedScenarios(t *testing.T) {
	server := httptest.NewServer(mock.NewServer().Handler())
	defer server.Close()

	tokens := scenario.NewBuilder().
		Name("tokens").
		Request(func(ctx context.Context, c scenario.Client, p scenario.Parameters) (*http.Response, error) {
			return c.Get(ctx, p.Get(scenario.BaseURLPrefix)+"/tokens", nil)
		}).
		Check("Tokens OK", func(r *http.Response) bool { return r.IsSuccess() }).
		MustBuild()

	cfg := &Config{
		Mode:     RateMode,
		Duration: 2 * time.Second,
		Rate:     50,
		MaxVUs:   20,
	}

	runner := NewRunner(cfg, WithReporter(quietReporter()), WithParameters(mirrorParams(server.URL)))
	runner.AddScenario(rest.TokensIDBalancesTimestamp(), 9)
	runner.AddScenario(tokens, 1)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	heavy := result.Summary.ScenarioBreakdown["tokensIdBalancesTimestamp"]
	light := result.Summary.ScenarioBreakdown["tokens"]
	require.NotNil(t, heavy)
	require.NotNil(t, light)
	assert.Greater(t, heavy.Total, light.Total)
	assert.Len(t, result.Summary.Checks, 2)
}

func TestRunnerGracefulShutdown(t *testing.T) {
	server := httptest.NewServer(mock.NewServer(mock.WithDelay(100 * time.Millisecond)).Handler())
	defer server.Close()

	cfg := &Config{
		Mode:     RateMode,
		Duration: 10 * time.Second, // Long duration
		Rate:     5,
		MaxVUs:   5,
	}

	runner := NewRunner(cfg, WithReporter(quietReporter()), WithParameters(mirrorParams(server.URL)))
	runner.AddScenario(rest.TokensIDBalancesTimestamp(), 1)

	// Cancel after 500ms
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	result, err := runner.Run(ctx)
	require.NoError(t, err)

	assert.True(t, result.Summary.Duration < 2*time.Second, "should have stopped early")
	t.Logf("Stopped after %v with %d requests", result.Summary.Duration, result.Summary.TotalRequests)
}

func TestReporterJSONSummary(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record("tokensIdBalancesTimestamp", 10*time.Millisecond, 200, nil)
	m.RecordCheck("tokensIdBalancesTimestamp", "Tokens id balances timestamp OK", true)
	m.Stop()

	result := &Result{
		RunID:     "run-1",
		Scenarios: []string{"tokensIdBalancesTimestamp"},
		Summary:   m.GetSummary(),
		Thresholds: []ThresholdResult{
			{Name: "checks", Passed: true, Expected: ">= 99%", Actual: "100%"},
		},
		Passed: true,
	}

	var out bytes.Buffer
	require.NoError(t, NewReporter(WithWriter(&out)).JSONSummary(result))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["runId"])
	assert.Equal(t, true, decoded["passed"])

	checks, ok := decoded["checks"].([]any)
	require.True(t, ok)
	require.Len(t, checks, 1)
	assert.Equal(t, "Tokens id balances timestamp OK", checks[0].(map[string]any)["name"])
}

type countingClient struct {
	calls atomic.Int64
}

func (c *countingClient) Get(_ context.Context, _ string, _ map[string]string) (*http.Response, error) {
	c.calls.Add(1)
	return &http.Response{StatusCode: 200}, nil
}

// flakyClient refuses every other request
type flakyClient struct {
	next  scenario.Client
	calls atomic.Int64
}

func (c *flakyClient) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	if c.calls.Add(1)%2 == 0 {
		return nil, errors.New("connection refused")
	}
	return c.next.Get(ctx, url, headers)
}

func TestRunnerTransportErrorsFailChecks(t *testing.T) {
	server := httptest.NewServer(mock.NewServer().Handler())
	defer server.Close()

	cfg := &Config{
		Mode:     RateMode,
		Duration: 1 * time.Second,
		Rate:     20,
		MaxVUs:   10,
	}

	runner := NewRunner(cfg,
		WithHTTPClient(&flakyClient{next: http.NewClient()}),
		WithReporter(quietReporter()),
		WithParameters(mirrorParams(server.URL)),
	)
	runner.AddScenario(rest.TokensIDBalancesTimestamp(), 1)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	summary := result.Summary
	assert.Positive(t, summary.ChecksPassed)
	assert.Positive(t, summary.ChecksFailed)
	assert.Equal(t, summary.ErrorCount, summary.ChecksFailed, "each refused connection fails the check once")
	assert.Less(t, summary.CheckRate, 0.99)

	require.Len(t, summary.Checks, 1)
	assert.Equal(t, summary.ChecksFailed, summary.Checks[0].Failed)

	// scenario defaults: checks>=99%,p95<5s
	assert.False(t, result.Passed)
	var checks *ThresholdResult
	for i := range result.Thresholds {
		if result.Thresholds[i].Name == "checks" {
			checks = &result.Thresholds[i]
		}
	}
	require.NotNil(t, checks)
	assert.False(t, checks.Passed)
}

func TestRunnerIgnoresIterationsCutOffByDeadline(t *testing.T) {
	server := httptest.NewServer(mock.NewServer(mock.WithDelay(5 * time.Second)).Handler())
	defer server.Close()

	cfg := &Config{
		Mode:       RateMode,
		Duration:   300 * time.Millisecond,
		Rate:       10,
		MaxVUs:     10,
		Thresholds: Thresholds{ErrorRate: 0.01},
	}

	runner := NewRunner(cfg, WithReporter(quietReporter()), WithParameters(mirrorParams(server.URL)))
	runner.AddScenario(rest.TokensIDBalancesTimestamp(), 1)

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	summary := result.Summary
	assert.Positive(t, summary.TimeoutCount)
	assert.Zero(t, summary.TotalRequests)
	assert.Zero(t, summary.ErrorCount)
	assert.Zero(t, summary.ChecksFailed)
	assert.True(t, result.Passed, "no iteration finished, so none failed")
}
