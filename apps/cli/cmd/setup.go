package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/mirrorperf/packages/core/config"
	"github.com/abdul-hamid-achik/mirrorperf/packages/core/env"
	"github.com/abdul-hamid-achik/mirrorperf/packages/http"
	"github.com/abdul-hamid-achik/mirrorperf/packages/params"
	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
)

// defaultEnvFile is read when present and --env-file is not given
const defaultEnvFile = ".env"

var (
	configFlag   string
	envFileFlag  string
	baseURLFlag  string
	paramFlags   []string
	discoverFlag bool
	timeoutFlag  string
	proxyFlag    string
	insecureFlag bool
	noColorFlag  bool
)

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return cfg, nil
}

// envFilePath returns the .env file to read, or "" for none
func envFilePath() string {
	if envFileFlag != "" {
		return envFileFlag
	}
	if _, err := os.Stat(defaultEnvFile); err == nil {
		return defaultEnvFile
	}
	return ""
}

func noColor(cfg *config.Config) bool {
	return noColorFlag || cfg.GetNoColor()
}

func newHTTPClient(cfg *config.Config) (*http.Client, error) {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, withExitCode(ExitParseError, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err))
		}
		timeout = d
	}

	opts := []http.ClientOption{
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithValidateSSL(cfg.GetValidateSSL() && !insecureFlag),
		http.WithDefaultHeaders(cfg.Headers),
	}
	if timeout > 0 {
		opts = append(opts, http.WithTimeout(timeout))
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(cfg.MaxRedirects))
	}

	proxy := cfg.Proxy
	if proxyFlag != "" {
		proxy = proxyFlag
	}
	if proxy != "" {
		if err := http.ValidateURL(proxy); err != nil {
			return nil, withExitCode(ExitConfigError, fmt.Errorf("invalid proxy: %w", err))
		}
		opts = append(opts, http.WithProxy(proxy))
	}

	return http.NewClient(opts...), nil
}

// knownParameters lists the variable names read from the bare process
// environment: the shared ones plus everything the scenarios require.
func knownParameters(scenarios []*scenario.Scenario) []string {
	known := []string{
		scenario.BaseURL,
		scenario.BaseURLPrefix,
		scenario.DefaultTokenID,
		scenario.DefaultTokenBalanceTimestamp,
	}
	for _, s := range scenarios {
		known = append(known, s.RequiredParameters()...)
	}
	return known
}

// resolveParameters merges config < .env < environment < --param, then
// derives BASE_URL_PREFIX and runs discovery when asked.
func resolveParameters(ctx context.Context, cfg *config.Config, client scenario.Client, scenarios []*scenario.Scenario) (scenario.Parameters, error) {
	fromConfig := make(map[string]string, len(cfg.Parameters)+1)
	if cfg.BaseURL != "" {
		fromConfig[scenario.BaseURL] = cfg.BaseURL
	}
	for k, v := range cfg.Parameters {
		fromConfig[k] = v
	}

	var fromFile map[string]string
	if path := envFilePath(); path != "" {
		vars, err := env.LoadDotEnv(path)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		fromFile = vars
	}

	fromFlags, err := env.ParseAssignments(paramFlags)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	if baseURLFlag != "" {
		fromFlags[scenario.BaseURL] = baseURLFlag
	}

	p := scenario.Parameters(env.MergeParameters(
		fromConfig,
		fromFile,
		env.SystemParameters(knownParameters(scenarios)),
		fromFlags,
	))
	p.DeriveBaseURLPrefix()

	if discoverFlag {
		discovered, err := params.Discover(ctx, client, p)
		if errors.Is(err, params.ErrNoBaseURL) {
			return nil, withExitCode(ExitConfigError, err)
		}
		if err != nil {
			return nil, withExitCode(ExitNetworkError, err)
		}
		p = discovered
	}

	return p, nil
}

// classify attaches an exit code to errors that do not carry one yet
func classify(err error) error {
	if err == nil {
		return nil
	}

	var discoveryErr *params.DiscoveryError
	switch {
	case errors.Is(err, scenario.ErrMissingParameters), errors.Is(err, params.ErrNoBaseURL):
		return withExitCode(ExitConfigError, err)
	case errors.As(err, &discoveryErr):
		return withExitCode(ExitNetworkError, err)
	default:
		return withExitCode(ExitTestFailure, err)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(onSignal func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			if onSignal != nil {
				onSignal()
			}
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
