package output

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Results  []JSONCheck `json:"results"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary represents the pass summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

// JSONCheck is one scenario iteration
type JSONCheck struct {
	Scenario string        `json:"scenario"`
	Target   string        `json:"target"`
	URL      string        `json:"url,omitempty"`
	Passed   bool          `json:"passed"`
	Duration float64       `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Schema   string        `json:"schemaError,omitempty"`
	Response *JSONResponse `json:"response,omitempty"`
	Checks   []JSONResult  `json:"checks,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONResult is one named check
type JSONResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// JSONFormatter formats check results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONCheck
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONCheck, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatReport(report *Report) {
	for i := range report.Outcomes {
		o := &report.Outcomes[i]
		entry := JSONCheck{
			Scenario: o.Scenario,
			Target:   report.Target,
			URL:      o.URL,
			Passed:   o.Passed(),
		}

		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		if o.SchemaErr != nil {
			entry.Schema = o.SchemaErr.Error()
		}

		if o.Result != nil {
			entry.Duration = float64(o.Result.Duration.Milliseconds())
			if resp := o.Result.Response; resp != nil {
				entry.Response = &JSONResponse{
					StatusCode: resp.StatusCode,
					Status:     resp.Status,
					Headers:    resp.Headers,
					Duration:   float64(resp.Duration.Milliseconds()),
				}
			}
			for _, c := range o.Result.Checks {
				entry.Checks = append(entry.Checks, JSONResult{Name: c.Name, Passed: c.Passed})
			}
		}

		f.results = append(f.results, entry)
	}
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var summary JSONSummary
	for _, r := range f.results {
		switch {
		case r.Error != "":
			summary.Errored++
		case r.Passed:
			summary.Passed++
		default:
			summary.Failed++
		}
	}
	summary.Total = len(f.results)

	output := JSONOutput{
		Summary:  summary,
		Results:  f.results,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
