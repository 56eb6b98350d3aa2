// Package output provides formatters for the results of a check pass, where
// every selected scenario runs exactly once.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//
// Each formatter implements Formatter and can optionally implement Flushable
// for formats that accumulate results before output. WriteLoadJUnit renders a
// finished load run as JUnit XML.
package output
