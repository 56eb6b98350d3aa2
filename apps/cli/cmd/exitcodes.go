package cmd

// Exit codes for the mirrorperf CLI
const (
	// ExitSuccess indicates the run passed
	ExitSuccess = 0

	// ExitTestFailure indicates failed checks or thresholds
	ExitTestFailure = 1

	// ExitParseError indicates an unparsable flag value or profile
	ExitParseError = 2

	// ExitConfigError indicates a configuration error, including missing parameters
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
