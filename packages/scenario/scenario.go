package scenario

import (
	"context"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/http"
)

// Default thresholds applied to every scenario unless overridden.
const DefaultThresholds = "checks>=99%,p95<5s"

// Client is the subset of the HTTP client a request function may use.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error)
}

// RequestFunc performs one iteration's request.
type RequestFunc func(ctx context.Context, c Client, p Parameters) (*http.Response, error)

// CheckFunc is a named pass/fail predicate over a response.
type CheckFunc func(resp *http.Response) bool

type check struct {
	name string
	fn   CheckFunc
}

// Options is the configuration a scenario hands to the engine.
type Options struct {
	Name       string
	Tags       map[string]string
	Thresholds string
}

// CheckResult is the outcome of one named check in one iteration.
type CheckResult struct {
	Name   string
	Passed bool
}

// Result is the outcome of one iteration.
type Result struct {
	Scenario string
	Response *http.Response
	Duration time.Duration
	Checks   []CheckResult
}

// Passed reports whether every check passed.
func (r *Result) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Scenario is a built, immutable scenario.
type Scenario struct {
	name       string
	tags       map[string]string
	thresholds string
	request    RequestFunc
	required   []string
	checks     []check
}

func (s *Scenario) Name() string {
	return s.name
}

// Options returns a copy of the scenario options.
func (s *Scenario) Options() Options {
	tags := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		tags[k] = v
	}
	return Options{
		Name:       s.name,
		Tags:       tags,
		Thresholds: s.thresholds,
	}
}

// RequiredParameters returns the parameter names Setup insists on.
func (s *Scenario) RequiredParameters() []string {
	out := make([]string, len(s.required))
	copy(out, s.required)
	return out
}

// CheckNames lists the checks in declaration order.
func (s *Scenario) CheckNames() []string {
	names := make([]string, len(s.checks))
	for i, c := range s.checks {
		names[i] = c.name
	}
	return names
}

// Setup validates p before any request is sent.
func (s *Scenario) Setup(p Parameters) error {
	if missing := p.Missing(s.required...); len(missing) > 0 {
		return &MissingParametersError{Scenario: s.name, Names: missing}
	}
	return nil
}

// Run executes one iteration. Check failures are reported in the Result.
// A transport error is returned as is together with a Result in which
// every check failed, since no response reached the predicates.
func (s *Scenario) Run(ctx context.Context, c Client, p Parameters) (*Result, error) {
	start := time.Now()
	resp, err := s.request(ctx, c, p)
	duration := time.Since(start)

	result := &Result{
		Scenario: s.name,
		Response: resp,
		Duration: duration,
		Checks:   make([]CheckResult, 0, len(s.checks)),
	}
	if err != nil {
		result.Response = nil
		for _, ch := range s.checks {
			result.Checks = append(result.Checks, CheckResult{Name: ch.name})
		}
		return result, err
	}
	if resp != nil && resp.Duration > 0 {
		result.Duration = resp.Duration
	}

	for _, ch := range s.checks {
		result.Checks = append(result.Checks, CheckResult{
			Name:   ch.name,
			Passed: resp != nil && ch.fn(resp),
		})
	}

	return result, nil
}
