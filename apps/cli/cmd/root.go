package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "mirrorperf",
	Short: "Load tests for the mirror node REST API.",
	Long: `mirrorperf runs load-test scenarios against a mirror node REST API.
Each scenario issues one request per iteration and checks the response;
runs are judged against latency, error and check-rate thresholds.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("MIRRORPERF_CONFIG", ""), "Path to config file (env: MIRRORPERF_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", getEnvString("MIRRORPERF_ENV_FILE", ""), "Path to .env file with scenario parameters (default: ./.env if present) (env: MIRRORPERF_ENV_FILE)")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Mirror node base URL, e.g. https://testnet.mirrornode.hedera.com")
	rootCmd.PersistentFlags().StringArrayVarP(&paramFlags, "param", "P", nil, "Scenario parameter as KEY=value (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&discoverFlag, "discover", false, "Fill missing parameters from the mirror node")
	rootCmd.PersistentFlags().StringVar(&timeoutFlag, "timeout", getEnvString("MIRRORPERF_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: MIRRORPERF_TIMEOUT)")
	rootCmd.PersistentFlags().StringVar(&proxyFlag, "proxy", getEnvString("MIRRORPERF_PROXY", ""), "Proxy URL for HTTP requests (env: MIRRORPERF_PROXY)")
	rootCmd.PersistentFlags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("MIRRORPERF_INSECURE", false), "Disable SSL certificate validation (env: MIRRORPERF_INSECURE)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("MIRRORPERF_NO_COLOR", false), "Disable colored output (env: MIRRORPERF_NO_COLOR)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// exitError carries the process exit code for a failed command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// withExitCode attaches code unless err already carries one
func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}
