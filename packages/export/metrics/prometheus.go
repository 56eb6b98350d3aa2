package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/stress"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"
)

const namespace = "mirrorperf"

// PrometheusExporter publishes run results through a private Prometheus
// registry: as text, on a /metrics endpoint, or to a Pushgateway.
type PrometheusExporter struct {
	mu       sync.Mutex
	registry *prometheus.Registry

	iterations *prometheus.GaugeVec
	checks     *prometheus.GaugeVec
	latency    *prometheus.GaugeVec
	statuses   *prometheus.GaugeVec
	thresholds *prometheus.GaugeVec
	rps        prometheus.Gauge
	passed     prometheus.Gauge
	runInfo    *prometheus.GaugeVec

	writer  io.Writer
	addr    string
	server  *http.Server
	pushURL string
	pushJob string
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithPrometheusWriter writes the text exposition format on every Export
func WithPrometheusWriter(w io.Writer) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.writer = w
	}
}

// WithPrometheusHTTP serves /metrics on addr, e.g. ":9464"
func WithPrometheusHTTP(addr string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.addr = addr
	}
}

// WithPrometheusPush pushes to a Pushgateway at url under job
func WithPrometheusPush(url, job string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.pushURL = url
		p.pushJob = job
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(opts ...PrometheusOption) *PrometheusExporter {
	p := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		pushJob:  namespace,
		iterations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "iterations",
			Help:      "Iterations in the last run by scenario and outcome.",
		}, []string{"scenario", "result"}),
		checks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checks",
			Help:      "Check outcomes in the last run.",
		}, []string{"scenario", "check", "result"}),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "iteration_duration_seconds",
			Help:      "Iteration latency quantiles in the last run.",
		}, []string{"scenario", "quantile"}),
		statuses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "responses",
			Help:      "Responses in the last run by HTTP status code.",
		}, []string{"status"}),
		thresholds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold_passed",
			Help:      "1 when the threshold passed, 0 otherwise.",
		}, []string{"threshold"}),
		rps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "iterations_per_second",
			Help:      "Average iteration rate of the last run.",
		}),
		passed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_passed",
			Help:      "1 when every threshold of the last run passed.",
		}),
		runInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_info",
			Help:      "Identifies the last run.",
		}, []string{"run_id", "mode"}),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.registry.MustRegister(
		p.iterations, p.checks, p.latency, p.statuses,
		p.thresholds, p.rps, p.passed, p.runInfo,
	)

	return p
}

// Registry exposes the exporter's registry
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Start serves /metrics when WithPrometheusHTTP was given
func (p *PrometheusExporter) Start() error {
	if p.addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())

	p.server = &http.Server{
		Addr:              p.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("prometheus endpoint: %w", err)
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

// Export replaces the published values with result
func (p *PrometheusExporter) Export(result *stress.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.observe(result)

	if p.writer != nil {
		if err := p.WriteText(p.writer); err != nil {
			return err
		}
	}

	if p.pushURL != "" {
		err := push.New(p.pushURL, p.pushJob).
			Gatherer(p.registry).
			Grouping("run", result.RunID).
			Push()
		if err != nil {
			return fmt.Errorf("push to %s: %w", p.pushURL, err)
		}
	}

	return nil
}

func (p *PrometheusExporter) observe(result *stress.Result) {
	s := result.Summary

	p.iterations.Reset()
	p.checks.Reset()
	p.latency.Reset()
	p.statuses.Reset()
	p.thresholds.Reset()
	p.runInfo.Reset()

	for name, sc := range s.ScenarioBreakdown {
		p.iterations.WithLabelValues(name, "success").Set(float64(sc.Success))
		p.iterations.WithLabelValues(name, "error").Set(float64(sc.Errors))
		p.latency.WithLabelValues(name, "0.5").Set(sc.P50.Seconds())
		p.latency.WithLabelValues(name, "0.95").Set(sc.P95.Seconds())
		p.latency.WithLabelValues(name, "0.99").Set(sc.P99.Seconds())
	}

	for _, c := range s.Checks {
		p.checks.WithLabelValues(c.Scenario, c.Name, "pass").Set(float64(c.Passed))
		p.checks.WithLabelValues(c.Scenario, c.Name, "fail").Set(float64(c.Failed))
	}

	for code, n := range s.StatusCodes {
		p.statuses.WithLabelValues(strconv.Itoa(code)).Set(float64(n))
	}

	for _, tr := range result.Thresholds {
		v := 0.0
		if tr.Passed {
			v = 1
		}
		p.thresholds.WithLabelValues(tr.Name).Set(v)
	}

	p.rps.Set(s.RPS)
	if result.Passed {
		p.passed.Set(1)
	} else {
		p.passed.Set(0)
	}
	p.runInfo.WithLabelValues(result.RunID, result.Config.Mode.String()).Set(1)
}

// WriteText writes every gathered family in the text exposition format
func (p *PrometheusExporter) WriteText(w io.Writer) error {
	families, err := p.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// Close shuts down the /metrics endpoint if one was started
func (p *PrometheusExporter) Close() error {
	if p.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.server.Shutdown(ctx)
}
