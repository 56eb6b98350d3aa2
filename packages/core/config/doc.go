// Package config handles configuration loading and management for mirrorperf.
//
// It provides functionality for:
//   - Loading configuration from .mirrorperf.json or .mirrorperf.yaml files
//   - Default configuration values
//   - Named stress profiles
package config
