package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the mirrorperf configuration
type Config struct {
	BaseURL         string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`       // Default headers for all requests
	Parameters      map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"` // Scenario parameters, e.g. DEFAULT_TOKEN_ID
	Stress          *StressConfig     `json:"stress,omitempty" yaml:"stress,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	HistoryDB       string            `json:"historyDb,omitempty" yaml:"historyDb,omitempty"` // SQLite file for run history
}

// StressConfig holds named load profiles
type StressConfig struct {
	Profiles map[string]*Profile `json:"profiles,omitempty" yaml:"profiles,omitempty"`
}

// Profile is a named set of load settings. Durations use time.ParseDuration
// syntax; Thresholds uses the --threshold flag syntax.
type Profile struct {
	Duration   string   `json:"duration,omitempty" yaml:"duration,omitempty"`
	Rate       float64  `json:"rate,omitempty" yaml:"rate,omitempty"`
	VUs        int      `json:"vus,omitempty" yaml:"vus,omitempty"`
	MaxVUs     int      `json:"maxVUs,omitempty" yaml:"maxVUs,omitempty"`
	ThinkTime  string   `json:"thinkTime,omitempty" yaml:"thinkTime,omitempty"`
	RampUp     string   `json:"rampUp,omitempty" yaml:"rampUp,omitempty"`
	Thresholds string   `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Scenarios  []string `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// Profile returns the named stress profile
func (c *Config) Profile(name string) (*Profile, error) {
	if c.Stress != nil {
		if p, ok := c.Stress.Profiles[name]; ok && p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("stress profile %q not found in config", name)
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".mirrorperf.json",
	"mirrorperf.json",
	".mirrorperf.yaml",
	"mirrorperf.yaml",
	".mirrorperf.yml",
	"mirrorperf.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfigFromFile loads configuration from a specific file. Values set in
// the file are applied on top of the defaults.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fileConfig := &Config{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, fileConfig)
	} else {
		err = json.Unmarshal(data, fileConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return DefaultConfig().Merge(fileConfig), nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy
	result.Headers = copyMap(c.Headers)
	result.Parameters = copyMap(c.Parameters)

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	for k, v := range other.Headers {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		result.Headers[k] = v
	}
	for k, v := range other.Parameters {
		if result.Parameters == nil {
			result.Parameters = make(map[string]string)
		}
		result.Parameters[k] = v
	}

	if other.Stress != nil && len(other.Stress.Profiles) > 0 {
		profiles := make(map[string]*Profile)
		if c.Stress != nil {
			for name, p := range c.Stress.Profiles {
				profiles[name] = p
			}
		}
		for name, p := range other.Stress.Profiles {
			profiles[name] = p
		}
		result.Stress = &StressConfig{Profiles: profiles}
	}

	return &result
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SaveConfig saves the configuration to a file, as YAML when the extension
// says so and JSON otherwise
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
