package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/mirrorperf/packages/core/config"
	"github.com/abdul-hamid-achik/mirrorperf/packages/mock"
	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
	"github.com/spf13/cobra"
)

var forceInit bool

// initDefaultBaseURL matches the port of "mirrorperf mock"
const initDefaultBaseURL = "http://localhost:5551"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a mirrorperf config in the current directory",
	Long: `Initialize mirrorperf in the current directory.

This creates:
  - mirrorperf.yaml  - Configuration file with smoke, load and soak profiles
  - .env.example     - Scenario parameters to copy into .env

Examples:
  mirrorperf init
  mirrorperf init --base-url https://testnet.mirrornode.hedera.com
  mirrorperf init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

// starterConfig is the config written by init
func starterConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Parameters = map[string]string{
		scenario.DefaultTokenID: "0.0.1001",
	}
	cfg.Stress = &config.StressConfig{
		Profiles: map[string]*config.Profile{
			"smoke": {
				Duration:   "10s",
				Rate:       1,
				MaxVUs:     5,
				Thresholds: scenario.DefaultThresholds,
			},
			"load": {
				Duration:   "5m",
				Rate:       100,
				MaxVUs:     200,
				RampUp:     "30s",
				Thresholds: "checks>=99%,p95<500ms,errors<1%",
			},
			"soak": {
				Duration:   "1h",
				VUs:        20,
				MaxVUs:     50,
				ThinkTime:  "1s",
				Thresholds: "checks>=99%,p99<2s",
			},
		},
	}
	return cfg
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	baseURL := baseURLFlag
	if baseURL == "" {
		baseURL = initDefaultBaseURL
	}

	configFile := filepath.Join(cwd, "mirrorperf.yaml")
	envFile := filepath.Join(cwd, ".env.example")

	if !forceInit {
		for _, f := range []string{configFile, envFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	if err := starterConfig(baseURL).SaveConfig(configFile); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("failed to create config file: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	envContent := fmt.Sprintf(`# Scenario parameters. Copy to .env, or export as MIRRORPERF_<NAME>.
# BASE_URL_PREFIX defaults to BASE_URL + %s.
BASE_URL=%s
%s=0.0.1001
# Omit to query the latest balances, or use --discover.
%s=%s
`, scenario.APIPrefix, baseURL, scenario.DefaultTokenID, scenario.DefaultTokenBalanceTimestamp, mock.DefaultSnapshotTimestamp)

	if err := os.WriteFile(envFile, []byte(envContent), 0644); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("failed to create env file: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", envFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nGet started:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  mirrorperf mock &\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  mirrorperf check\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  mirrorperf run --profile smoke\n")

	return nil
}
