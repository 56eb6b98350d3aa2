package env

import (
	"fmt"
	"os"
	"strings"
)

// SystemPrefix marks environment variables that become parameters with the
// prefix stripped, e.g. MIRRORPERF_DEFAULT_TOKEN_ID.
const SystemPrefix = "MIRRORPERF_"

// LoadSystemEnv returns the process environment. With a prefix, only
// variables carrying it are returned, keyed without the prefix.
func LoadSystemEnv(prefix string) map[string]string {
	result := make(map[string]string)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}

// SystemParameters picks parameters from the process environment: every
// variable named in known, plus every MIRRORPERF_ variable. A prefixed
// variable wins over its bare name.
func SystemParameters(known []string) map[string]string {
	all := LoadSystemEnv("")
	result := make(map[string]string)
	for _, name := range known {
		if v, ok := all[name]; ok {
			result[name] = v
		}
	}
	for k, v := range LoadSystemEnv(SystemPrefix) {
		result[k] = v
	}
	return result
}

// ParseAssignments parses KEY=value pairs as given to --param.
func ParseAssignments(pairs []string) (map[string]string, error) {
	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected KEY=value", pair)
		}
		result[key] = value
	}
	return result, nil
}

// MergeParameters merges sources in order, later sources taking precedence.
// Callers pass config, .env, system environment and flags in that order.
func MergeParameters(sources ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}
