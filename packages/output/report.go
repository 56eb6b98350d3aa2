package output

import (
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
)

// Outcome is what a single iteration of one scenario produced.
type Outcome struct {
	Scenario string
	URL      string
	// Result is nil when setup failed. After a transport error it holds
	// every check as failed and no Response.
	Result *scenario.Result
	Err    error
	// SchemaErr is set when the body did not match the expected schema.
	SchemaErr error
}

// Passed reports whether the iteration ran and every check passed.
func (o *Outcome) Passed() bool {
	return o.Err == nil && o.SchemaErr == nil && o.Result != nil && o.Result.Passed()
}

// Report is one check pass over the selected scenarios.
type Report struct {
	Target   string
	Outcomes []Outcome
	Duration time.Duration
}

// Counts returns passed, failed, and errored outcomes.
func (r *Report) Counts() (passed, failed, errored int) {
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		switch {
		case o.Err != nil:
			errored++
		case o.Passed():
			passed++
		default:
			failed++
		}
	}
	return passed, failed, errored
}

// Passed reports whether every outcome passed.
func (r *Report) Passed() bool {
	_, failed, errored := r.Counts()
	return failed == 0 && errored == 0
}

// Formatter is implemented by every output format
type Formatter interface {
	FormatReport(report *Report)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that buffer until the run ends
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

func failedChecks(o *Outcome) []string {
	if o.Result == nil {
		return nil
	}
	var names []string
	for _, c := range o.Result.Checks {
		if !c.Passed {
			names = append(names, c.Name)
		}
	}
	return names
}
