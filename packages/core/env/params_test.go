package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSystemEnv(t *testing.T) {
	t.Setenv("MIRRORPERF_DEFAULT_TOKEN_ID", "0.0.1001")
	t.Setenv("BASE_URL", "http://localhost:5551")

	all := LoadSystemEnv("")
	assert.Equal(t, "http://localhost:5551", all["BASE_URL"])

	prefixed := LoadSystemEnv(SystemPrefix)
	assert.Equal(t, "0.0.1001", prefixed["DEFAULT_TOKEN_ID"])
	assert.NotContains(t, prefixed, "BASE_URL")
}

func TestSystemParameters(t *testing.T) {
	t.Setenv("BASE_URL", "http://bare")
	t.Setenv("DEFAULT_TOKEN_ID", "0.0.1")
	t.Setenv("MIRRORPERF_DEFAULT_TOKEN_ID", "0.0.2")
	t.Setenv("UNRELATED_SETTING", "x")

	params := SystemParameters([]string{"BASE_URL", "DEFAULT_TOKEN_ID"})

	assert.Equal(t, "http://bare", params["BASE_URL"])
	assert.Equal(t, "0.0.2", params["DEFAULT_TOKEN_ID"])
	assert.NotContains(t, params, "UNRELATED_SETTING")
}

func TestParseAssignments(t *testing.T) {
	params, err := ParseAssignments([]string{
		"DEFAULT_TOKEN_ID=0.0.1001",
		"DEFAULT_TOKEN_BALANCE_TIMESTAMP=lte:1=2",
		"EMPTY=",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"DEFAULT_TOKEN_ID":                "0.0.1001",
		"DEFAULT_TOKEN_BALANCE_TIMESTAMP": "lte:1=2",
		"EMPTY":                           "",
	}, params)

	_, err = ParseAssignments([]string{"DEFAULT_TOKEN_ID"})
	assert.Error(t, err)

	_, err = ParseAssignments([]string{"=value"})
	assert.Error(t, err)
}

func TestMergeParameters(t *testing.T) {
	config := map[string]string{"BASE_URL": "http://config", "DEFAULT_TOKEN_ID": "0.0.1"}
	dotenv := map[string]string{"DEFAULT_TOKEN_ID": "0.0.2"}
	system := map[string]string{"DEFAULT_TOKEN_ID": "0.0.3", "DEFAULT_TOKEN_BALANCE_TIMESTAMP": "1"}
	flags := map[string]string{"DEFAULT_TOKEN_ID": "0.0.4"}

	merged := MergeParameters(config, dotenv, system, flags, nil)

	assert.Equal(t, map[string]string{
		"BASE_URL":                        "http://config",
		"DEFAULT_TOKEN_ID":                "0.0.4",
		"DEFAULT_TOKEN_BALANCE_TIMESTAMP": "1",
	}, merged)

	merged["BASE_URL"] = "changed"
	assert.Equal(t, "http://config", config["BASE_URL"])
}
