package stress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, RateMode, cfg.Mode)
	assert.Equal(t, 30*time.Second, cfg.Duration)
	assert.Equal(t, float64(10), cfg.Rate)
	assert.Equal(t, 100, cfg.MaxVUs)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid rate mode config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "valid VU mode config",
			config: &Config{
				Mode:     VUMode,
				Duration: 30 * time.Second,
				VUs:      10,
				MaxVUs:   100,
			},
			wantErr: false,
		},
		{
			name: "invalid duration",
			config: &Config{
				Mode:     RateMode,
				Duration: 0,
				Rate:     10,
				MaxVUs:   100,
			},
			wantErr: true,
		},
		{
			name: "invalid rate in rate mode",
			config: &Config{
				Mode:     RateMode,
				Duration: 30 * time.Second,
				Rate:     0,
				MaxVUs:   100,
			},
			wantErr: true,
		},
		{
			name: "invalid VUs in VU mode",
			config: &Config{
				Mode:     VUMode,
				Duration: 30 * time.Second,
				VUs:      0,
				MaxVUs:   100,
			},
			wantErr: true,
		},
		{
			name: "invalid maxVUs",
			config: &Config{
				Mode:     RateMode,
				Duration: 30 * time.Second,
				Rate:     10,
				MaxVUs:   0,
			},
			wantErr: true,
		},
		{
			name: "rampUp exceeds duration",
			config: &Config{
				Mode:     RateMode,
				Duration: 30 * time.Second,
				Rate:     10,
				MaxVUs:   100,
				RampUp:   60 * time.Second,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Thresholds
		wantErr  bool
	}{
		{
			name:  "p95 threshold",
			input: "p95<200ms",
			expected: Thresholds{
				P95: 200 * time.Millisecond,
			},
		},
		{
			name:  "p99 threshold",
			input: "p99<500ms",
			expected: Thresholds{
				P99: 500 * time.Millisecond,
			},
		},
		{
			name:  "error rate percentage",
			input: "errors<1%",
			expected: Thresholds{
				ErrorRate: 0.01,
			},
		},
		{
			name:  "error rate decimal",
			input: "errors<0.001",
			expected: Thresholds{
				ErrorRate: 0.001,
			},
		},
		{
			name:  "multiple thresholds",
			input: "p95<200ms,errors<0.1%",
			expected: Thresholds{
				P95:       200 * time.Millisecond,
				ErrorRate: 0.001,
			},
		},
		{
			name:  "with spaces",
			input: "p95 < 200ms, errors < 1%",
			expected: Thresholds{
				P95:       200 * time.Millisecond,
				ErrorRate: 0.01,
			},
		},
		{
			name:  "rps threshold",
			input: "rps>50",
			expected: Thresholds{
				MinRPS: 50,
			},
		},
		{
			name:  "check rate percentage",
			input: "checks>=99%",
			expected: Thresholds{
				MinCheckRate: 0.99,
			},
		},
		{
			name:  "default scenario thresholds",
			input: "checks>=99%,p95<5s",
			expected: Thresholds{
				P95:          5 * time.Second,
				MinCheckRate: 0.99,
			},
		},
		{
			name:    "check rate with wrong operator",
			input:   "checks<99%",
			wantErr: true,
		},
		{
			name:    "latency with wrong operator",
			input:   "p95>200ms",
			wantErr: true,
		},
		{
			name:    "zero error rate",
			input:   "errors<0%",
			wantErr: true,
		},
		{
			name:    "zero latency",
			input:   "p95<=0s",
			wantErr: true,
		},
		{
			name:    "zero check rate",
			input:   "checks>=0",
			wantErr: true,
		},
		{
			name:    "invalid format",
			input:   "invalid",
			wantErr: true,
		},
		{
			name:    "invalid metric",
			input:   "unknown<100",
			wantErr: true,
		},
		{
			name:     "empty string",
			input:    "",
			expected: Thresholds{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseThresholds(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected.P50, result.P50)
				assert.Equal(t, tt.expected.P95, result.P95)
				assert.Equal(t, tt.expected.P99, result.P99)
				assert.InDelta(t, tt.expected.ErrorRate, result.ErrorRate, 0.0001)
				assert.Equal(t, tt.expected.MinRPS, result.MinRPS)
				assert.InDelta(t, tt.expected.MinCheckRate, result.MinCheckRate, 0.0001)
			}
		})
	}
}

func TestThresholdsHasThresholds(t *testing.T) {
	tests := []struct {
		name       string
		thresholds Thresholds
		expected   bool
	}{
		{
			name:       "empty thresholds",
			thresholds: Thresholds{},
			expected:   false,
		},
		{
			name: "with p95",
			thresholds: Thresholds{
				P95: 200 * time.Millisecond,
			},
			expected: true,
		},
		{
			name: "with error rate",
			thresholds: Thresholds{
				ErrorRate: 0.01,
			},
			expected: true,
		},
		{
			name: "with min RPS",
			thresholds: Thresholds{
				MinRPS: 50,
			},
			expected: true,
		},
		{
			name: "with check rate",
			thresholds: Thresholds{
				MinCheckRate: 0.99,
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.thresholds.HasThresholds())
		})
	}
}

func TestThresholdsTighten(t *testing.T) {
	a := Thresholds{P95: 5 * time.Second, MinCheckRate: 0.99, ErrorRate: 0.05}
	b := Thresholds{P95: 200 * time.Millisecond, P99: time.Second, MinCheckRate: 0.9, ErrorRate: 0.01, MinRPS: 5}

	a.Tighten(b)

	assert.Equal(t, 200*time.Millisecond, a.P95)
	assert.Equal(t, time.Second, a.P99)
	assert.Equal(t, time.Duration(0), a.P50)
	assert.InDelta(t, 0.99, a.MinCheckRate, 0.0001)
	assert.InDelta(t, 0.01, a.ErrorRate, 0.0001)
	assert.Equal(t, float64(5), a.MinRPS)
}

func TestParseThresholdsStrictness(t *testing.T) {
	th, err := ParseThresholds("p95<200ms,p99<=1s,errors<1%,checks>=99%,rps>10,max<=2s")
	require.NoError(t, err)

	assert.True(t, th.IsStrict(MetricP95))
	assert.False(t, th.IsStrict(MetricP99))
	assert.True(t, th.IsStrict(MetricErrors))
	assert.False(t, th.IsStrict(MetricChecks))
	assert.True(t, th.IsStrict(MetricRPS))
	assert.False(t, th.IsStrict(MetricMax))
	assert.Equal(t, 2*time.Second, th.MaxLatency)

	// a later inclusive bound replaces an earlier strict one
	th, err = ParseThresholds("p95<200ms,p95<=300ms")
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, th.P95)
	assert.False(t, th.IsStrict(MetricP95))
}

func TestThresholdsTightenStrictness(t *testing.T) {
	a, err := ParseThresholds("p95<=200ms,checks>=99%,errors<5%")
	require.NoError(t, err)
	b, err := ParseThresholds("p95<200ms,checks>99%,errors<=1%")
	require.NoError(t, err)

	a.Tighten(b)

	assert.Equal(t, 200*time.Millisecond, a.P95)
	assert.True(t, a.IsStrict(MetricP95), "strict wins at equal limits")
	assert.InDelta(t, 0.99, a.MinCheckRate, 0.0001)
	assert.True(t, a.IsStrict(MetricChecks))
	assert.InDelta(t, 0.01, a.ErrorRate, 0.0001)
	assert.False(t, a.IsStrict(MetricErrors), "the tighter limit brings its own operator")
}

func TestExecutionModeString(t *testing.T) {
	assert.Equal(t, "rate", RateMode.String())
	assert.Equal(t, "vus", VUMode.String())
}

func TestDefaultScenarioConfig(t *testing.T) {
	cfg := DefaultScenarioConfig()

	assert.Equal(t, 1, cfg.Weight)
	assert.Equal(t, time.Duration(0), cfg.Think)
}
