package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/stress"
)

// JSONExporter exports metrics to JSON format
type JSONExporter struct {
	writer   io.Writer
	filePath string
	pretty   bool
	version  string
}

// JSONOption is a functional option for JSONExporter
type JSONOption func(*JSONExporter)

// WithJSONWriter sets the output writer for JSON metrics
func WithJSONWriter(w io.Writer) JSONOption {
	return func(j *JSONExporter) {
		j.writer = w
	}
}

// WithJSONFile sets the output file for JSON metrics
func WithJSONFile(path string) JSONOption {
	return func(j *JSONExporter) {
		j.filePath = path
	}
}

// WithJSONPretty enables pretty-printed JSON output
func WithJSONPretty(pretty bool) JSONOption {
	return func(j *JSONExporter) {
		j.pretty = pretty
	}
}

// WithJSONVersion records the tool version in the metadata
func WithJSONVersion(version string) JSONOption {
	return func(j *JSONExporter) {
		j.version = version
	}
}

// NewJSONExporter creates a new JSON metrics exporter
func NewJSONExporter(opts ...JSONOption) *JSONExporter {
	j := &JSONExporter{
		pretty:  true,
		version: "dev",
	}

	for _, opt := range opts {
		opt(j)
	}

	return j
}

// JSONMetricsOutput is the complete JSON output structure
type JSONMetricsOutput struct {
	Metadata   JSONMetadata      `json:"metadata"`
	Summary    *AggregateMetrics `json:"summary"`
	Thresholds []JSONThreshold   `json:"thresholds,omitempty"`
}

// JSONMetadata contains metadata about the run
type JSONMetadata struct {
	RunID       string   `json:"run_id"`
	Scenarios   []string `json:"scenarios"`
	Mode        string   `json:"mode"`
	Passed      bool     `json:"passed"`
	GeneratedAt string   `json:"generated_at"`
	Duration    string   `json:"duration"`
	Version     string   `json:"version"`
}

// JSONThreshold is one evaluated threshold
type JSONThreshold struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Export writes result as JSON
func (j *JSONExporter) Export(result *stress.Result) error {
	output := JSONMetricsOutput{
		Metadata: JSONMetadata{
			RunID:       result.RunID,
			Scenarios:   result.Scenarios,
			Mode:        result.Config.Mode.String(),
			Passed:      result.Passed,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Duration:    result.Summary.Duration.String(),
			Version:     j.version,
		},
		Summary: FromSummary(result.Summary),
	}
	for _, tr := range result.Thresholds {
		output.Thresholds = append(output.Thresholds, JSONThreshold(tr))
	}

	var data []byte
	var err error

	if j.pretty {
		data, err = json.MarshalIndent(output, "", "  ")
	} else {
		data, err = json.Marshal(output)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if j.filePath != "" {
		if err := os.WriteFile(j.filePath, data, 0644); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}

	if j.writer != nil {
		if _, err := j.writer.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	return nil
}

// Close closes the JSON exporter
func (j *JSONExporter) Close() error {
	return nil
}
