package rest

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/abdul-hamid-achik/mirrorperf/packages/http"
	"github.com/abdul-hamid-achik/mirrorperf/packages/mock"
	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
	"github.com/abdul-hamid-achik/mirrorperf/packages/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	urls []string
	resp *http.Response
	err  error
}

func (c *recordingClient) Get(_ context.Context, url string, _ map[string]string) (*http.Response, error) {
	c.urls = append(c.urls, url)
	return c.resp, c.err
}

func validParams() scenario.Parameters {
	return scenario.Parameters{
		scenario.BaseURLPrefix:                "http://mirror.local:5551/api/v1",
		scenario.DefaultTokenID:               "0.0.1001",
		scenario.DefaultTokenBalanceTimestamp: "1690000000.000000001",
	}
}

func TestTokensIDBalancesTimestamp_Name(t *testing.T) {
	s := TokensIDBalancesTimestamp()

	assert.Equal(t, "tokensIdBalancesTimestamp", s.Name())
	assert.Equal(t, "tokensIdBalancesTimestamp", s.Options().Name)
	assert.Equal(t, "/tokens/{id}/balances?timestamp={timestamp}", s.Options().Tags["url"])
	assert.Equal(t, []string{scenario.DefaultTokenID}, s.RequiredParameters())
	assert.Equal(t, []string{"Tokens id balances timestamp OK"}, s.CheckNames())
}

func TestTokensIDBalancesTimestamp_SetupRequiresTokenID(t *testing.T) {
	s := TokensIDBalancesTimestamp()

	params := validParams()
	delete(params, scenario.DefaultTokenID)

	err := s.Setup(params)
	require.Error(t, err)
	assert.ErrorIs(t, err, scenario.ErrMissingParameters)
	assert.Contains(t, err.Error(), scenario.DefaultTokenID)

	require.NoError(t, s.Setup(validParams()))
}

func TestTokensIDBalancesTimestamp_URL(t *testing.T) {
	tests := []struct {
		name     string
		params   scenario.Parameters
		expected string
	}{
		{
			name:     "plain values",
			params:   validParams(),
			expected: "http://mirror.local:5551/api/v1/tokens/0.0.1001/balances?timestamp=1690000000.000000001",
		},
		{
			name: "values are not encoded",
			params: scenario.Parameters{
				scenario.BaseURLPrefix:                "http://mirror.local/api/v1",
				scenario.DefaultTokenID:               "0.0.1001 ",
				scenario.DefaultTokenBalanceTimestamp: "lte:1690000000&limit=1",
			},
			expected: "http://mirror.local/api/v1/tokens/0.0.1001 /balances?timestamp=lte:1690000000&limit=1",
		},
		{
			name: "missing timestamp leaves it empty",
			params: scenario.Parameters{
				scenario.BaseURLPrefix:  "http://mirror.local/api/v1",
				scenario.DefaultTokenID: "0.0.1001",
			},
			expected: "http://mirror.local/api/v1/tokens/0.0.1001/balances?timestamp=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &recordingClient{resp: &http.Response{StatusCode: 200}}
			_, err := TokensIDBalancesTimestamp().Run(context.Background(), client, tt.params)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.expected}, client.urls)
		})
	}
}

func TestTokensIDBalancesTimestamp_Check(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		passed bool
	}{
		{"non-empty balances", 200, `{"timestamp":"1690000000.000000001","balances":[{"account":"0.0.2001","balance":1}],"links":{"next":null}}`, true},
		{"empty balances", 200, `{"timestamp":null,"balances":[],"links":{"next":null}}`, false},
		{"missing balances", 200, `{"links":{"next":null}}`, false},
		{"balances not an array", 200, `{"balances":{"0.0.2001":1}}`, false},
		{"not found", 404, `{"_status":{"messages":[{"message":"Not found"}]}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &recordingClient{resp: &http.Response{StatusCode: tt.status, Body: []byte(tt.body)}}
			result, err := TokensIDBalancesTimestamp().Run(context.Background(), client, validParams())
			require.NoError(t, err)
			require.Len(t, result.Checks, 1)
			assert.Equal(t, "Tokens id balances timestamp OK", result.Checks[0].Name)
			assert.Equal(t, tt.passed, result.Checks[0].Passed)
			assert.Equal(t, tt.passed, result.Passed())
		})
	}
}

func TestTokensIDBalancesTimestamp_TransportError(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	client := &recordingClient{err: boom}

	result, err := TokensIDBalancesTimestamp().Run(context.Background(), client, validParams())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, boom)
}

func TestTokensIDBalancesTimestamp_AgainstMockMirror(t *testing.T) {
	server := httptest.NewServer(mock.NewServer().Handler())
	defer server.Close()

	params := scenario.Parameters{
		scenario.BaseURL:                      server.URL,
		scenario.DefaultTokenID:               "0.0.1001",
		scenario.DefaultTokenBalanceTimestamp: mock.DefaultSnapshotTimestamp,
	}
	params.DeriveBaseURLPrefix()

	s := TokensIDBalancesTimestamp()
	require.NoError(t, s.Setup(params))

	result, err := s.Run(context.Background(), http.NewClient(), params)
	require.NoError(t, err)
	assert.Equal(t, 200, result.Response.StatusCode)
	assert.True(t, result.Passed())

	params[scenario.DefaultTokenID] = "0.0.9999"
	result, err = s.Run(context.Background(), http.NewClient(), params)
	require.NoError(t, err)
	assert.Equal(t, 404, result.Response.StatusCode)
	assert.False(t, result.Passed())
}

func TestRegistry(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)

	names := make(map[string]bool)
	for _, s := range all {
		assert.False(t, names[s.Name()], "duplicate scenario name %s", s.Name())
		names[s.Name()] = true
	}

	s, err := Lookup("tokensIdBalancesTimestamp")
	require.NoError(t, err)
	assert.Equal(t, "tokensIdBalancesTimestamp", s.Name())

	_, err = Lookup("nope")
	assert.Error(t, err)

	selected, err := Select([]string{"tokensIdBalancesTimestamp", "tokensIdBalancesTimestamp"})
	require.NoError(t, err)
	assert.Len(t, selected, 1)

	selected, err = Select(nil)
	require.NoError(t, err)
	assert.Len(t, selected, len(all))

	_, err = Select([]string{"nope"})
	assert.Error(t, err)
}

func TestResponseSchema(t *testing.T) {
	_, ok := ResponseSchema("nope")
	assert.False(t, ok)

	schema, ok := ResponseSchema("tokensIdBalancesTimestamp")
	require.True(t, ok)

	server := httptest.NewServer(mock.NewServer().Handler())
	defer server.Close()

	result, err := TokensIDBalancesTimestamp().Run(context.Background(), http.NewClient(), scenario.Parameters{
		scenario.BaseURLPrefix:                server.URL + scenario.APIPrefix,
		scenario.DefaultTokenID:               "0.0.1001",
		scenario.DefaultTokenBalanceTimestamp: mock.DefaultSnapshotTimestamp,
	})
	require.NoError(t, err)
	assert.NoError(t, validate.MatchesSchema(result.Response, schema))
}
