package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/stress"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite groups the cases of one scenario
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a single check or threshold
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a test error
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats check results as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

// FormatReport adds one suite per scenario with one case per check
func (f *JUnitFormatter) FormatReport(report *Report) {
	for i := range report.Outcomes {
		o := &report.Outcomes[i]
		suite := JUnitTestSuite{
			Name:      o.Scenario,
			Timestamp: time.Now().Format(time.RFC3339),
		}

		if o.Err != nil {
			suite.Tests = 1
			suite.Errors = 1
			suite.TestCases = []JUnitTestCase{{
				Name:      o.Scenario,
				ClassName: o.Scenario,
				Error: &JUnitError{
					Message: o.Err.Error(),
					Type:    "Error",
				},
			}}
			f.testSuites = append(f.testSuites, suite)
			continue
		}

		elapsed := o.Result.Duration.Seconds()
		suite.Time = elapsed
		for _, c := range o.Result.Checks {
			tc := JUnitTestCase{
				Name:      c.Name,
				ClassName: o.Scenario,
				Time:      elapsed,
			}
			if !c.Passed {
				suite.Failures++
				tc.Failure = &JUnitFailure{
					Message: "Check failed",
					Type:    "CheckFailure",
					Content: checkFailureDetail(o),
				}
			}
			suite.TestCases = append(suite.TestCases, tc)
		}

		if o.SchemaErr != nil {
			suite.Failures++
			suite.TestCases = append(suite.TestCases, JUnitTestCase{
				Name:      "schema",
				ClassName: o.Scenario,
				Time:      elapsed,
				Failure: &JUnitFailure{
					Message: "Schema mismatch",
					Type:    "SchemaError",
					Content: o.SchemaErr.Error(),
				},
			})
		}

		suite.Tests = len(suite.TestCases)
		f.testSuites = append(f.testSuites, suite)
	}
}

func checkFailureDetail(o *Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s\n", o.URL)
	if resp := o.Result.Response; resp != nil {
		fmt.Fprintf(&b, "status %d\n", resp.StatusCode)
		b.WriteString(truncate(resp.BodyString(), 500))
	}
	return b.String()
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are included in individual test cases
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	return writeJUnit(f.writer, f.testSuites, totalDuration)
}

// WriteLoadJUnit renders a load run as JUnit XML: one suite per scenario
// with a case per check, and a suite of threshold cases.
func WriteLoadJUnit(w io.Writer, result *stress.Result) error {
	s := result.Summary
	elapsed := s.Duration.Seconds()
	timestamp := time.Now().Format(time.RFC3339)

	byScenario := make(map[string]*JUnitTestSuite, len(result.Scenarios))
	suites := make([]JUnitTestSuite, 0, len(result.Scenarios)+1)
	for _, name := range result.Scenarios {
		suites = append(suites, JUnitTestSuite{Name: name, Time: elapsed, Timestamp: timestamp})
	}
	for i := range suites {
		byScenario[suites[i].Name] = &suites[i]
	}

	for _, c := range s.Checks {
		suite, ok := byScenario[c.Scenario]
		if !ok {
			continue
		}
		tc := JUnitTestCase{
			Name:      c.Name,
			ClassName: c.Scenario,
			Time:      elapsed,
		}
		if c.Failed > 0 {
			suite.Failures++
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("%d of %d iterations failed", c.Failed, c.Passed+c.Failed),
				Type:    "CheckFailure",
				Content: fmt.Sprintf("pass rate %.2f%%", c.Rate()*100),
			}
		}
		suite.TestCases = append(suite.TestCases, tc)
		suite.Tests++
	}

	thresholds := JUnitTestSuite{Name: "thresholds", Time: elapsed, Timestamp: timestamp}
	for _, tr := range result.Thresholds {
		tc := JUnitTestCase{
			Name:      tr.Name,
			ClassName: "thresholds",
			Time:      elapsed,
		}
		if !tr.Passed {
			thresholds.Failures++
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("expected %s, got %s", tr.Expected, tr.Actual),
				Type:    "ThresholdFailure",
			}
		}
		thresholds.TestCases = append(thresholds.TestCases, tc)
		thresholds.Tests++
	}
	if thresholds.Tests > 0 {
		suites = append(suites, thresholds)
	}

	return writeJUnit(w, suites, s.Duration)
}

func writeJUnit(w io.Writer, suites []JUnitTestSuite, totalDuration time.Duration) error {
	var totalTests, totalFailures, totalErrors, totalSkipped int
	for _, suite := range suites {
		totalTests += suite.Tests
		totalFailures += suite.Failures
		totalErrors += suite.Errors
		totalSkipped += suite.Skipped
	}

	root := JUnitTestSuites{
		Name:       "mirrorperf",
		Tests:      totalTests,
		Failures:   totalFailures,
		Errors:     totalErrors,
		Skipped:    totalSkipped,
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: suites,
	}

	fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	return encoder.Encode(root)
}
