package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// truncate shortens long bodies for display
func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatReport(report *Report) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Checking: "+report.Target))
	fmt.Fprintf(f.writer, "\n")

	for i := range report.Outcomes {
		o := &report.Outcomes[i]

		if o.Err != nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), o.Scenario, red(fmt.Sprintf("(%v)", o.Err)))
			for _, name := range failedChecks(o) {
				fmt.Fprintf(f.writer, "    %s %s\n", red("✗"), name)
			}
			continue
		}

		symbol := green("✓")
		if !o.Passed() {
			symbol = red("✗")
		}

		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, o.Scenario, cyan(fmt.Sprintf("(%dms)", o.Result.Duration.Milliseconds())))

		if f.verbose {
			fmt.Fprintf(f.writer, "    GET %s\n", o.URL)
			if o.Result.Response != nil {
				fmt.Fprintf(f.writer, "    Status: %d\n", o.Result.Response.StatusCode)
			}
		}

		for _, c := range o.Result.Checks {
			if c.Passed {
				if f.verbose {
					fmt.Fprintf(f.writer, "    %s %s\n", green("✓"), c.Name)
				}
				continue
			}
			fmt.Fprintf(f.writer, "    %s %s\n", red("→"), c.Name)
		}

		if o.SchemaErr != nil {
			fmt.Fprintf(f.writer, "    %s schema: %v\n", red("→"), o.SchemaErr)
		}

		if !o.Passed() && f.verbose && o.Result.Response != nil {
			fmt.Fprintf(f.writer, "      Body: %s\n", truncate(o.Result.Response.BodyString(), 200))
		}
	}

	passed, failed, errored := report.Counts()
	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Scenarios: ")
	if passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", passed)))
	}
	if failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", failed)))
	}
	if errored > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d errored", errored)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(report.Outcomes))
	fmt.Fprintf(f.writer, "Time:      %dms\n", report.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("mirrorperf"), version)
}
