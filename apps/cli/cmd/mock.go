package cmd

import (
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/mock"
	"github.com/spf13/cobra"
)

var (
	mockPortFlag     int
	mockDelayFlag    string
	mockSnapshotFlag string
	mockVerboseFlag  bool
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Start a local mirror node mock",
	Long: `Start an HTTP server that answers the mirror node REST routes the
scenarios use, from a small fixed token set. Point runs at it for smoke
tests without a real mirror node.

The mock server:
- Serves /api/v1/tokens, /api/v1/tokens/{id} and /api/v1/tokens/{id}/balances
- Returns empty balances for timestamps before a token existed
- Returns mirror-style 400 and 404 error bodies
- Can add artificial delays to simulate network latency

Examples:
  mirrorperf mock
  mirrorperf mock --port 8080 --delay 50ms
  mirrorperf run --base-url http://localhost:5551 --discover`,
	Args: cobra.NoArgs,
	RunE: mockCommand,
}

func init() {
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", getEnvInt("MIRRORPERF_MOCK_PORT", 5551), "Port to run the mock server on (env: MIRRORPERF_MOCK_PORT)")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	mockCmd.Flags().StringVar(&mockSnapshotFlag, "snapshot-timestamp", mock.DefaultSnapshotTimestamp, "Timestamp of the latest balance snapshot")
	mockCmd.Flags().BoolVarP(&mockVerboseFlag, "verbose", "v", false, "Enable verbose logging")
}

func mockCommand(cmd *cobra.Command, args []string) error {
	// Parse delay
	var delay time.Duration
	if mockDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(mockDelayFlag)
		if err != nil {
			return withExitCode(ExitParseError, fmt.Errorf("invalid delay value %q: %w", mockDelayFlag, err))
		}
	}

	server := mock.NewServer(
		mock.WithPort(mockPortFlag),
		mock.WithDelay(delay),
		mock.WithSnapshotTimestamp(mockSnapshotFlag),
		mock.WithVerbose(mockVerboseFlag),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d routes\n", len(server.GetRoutes()))

	// Setup graceful shutdown
	ctx, cancel := signalContext(func() {
		fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down mock server...")
	})
	defer cancel()

	if err := server.StartWithContext(ctx); err != nil {
		return withExitCode(ExitNetworkError, err)
	}
	return nil
}
