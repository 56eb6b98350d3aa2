package config

// DefaultHistoryDB is the default SQLite file for run history
const DefaultHistoryDB = ".mirrorperf/history.db"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         30000, // 30 seconds
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(true),
		NoColor:         BoolPtr(false),
		HistoryDB:       DefaultHistoryDB,
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.BaseURL == defaults.BaseURL &&
		c.Timeout == defaults.Timeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == defaults.Proxy &&
		len(c.Headers) == 0 &&
		len(c.Parameters) == 0 &&
		c.Stress == nil &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.HistoryDB == defaults.HistoryDB
}
