package validate

import (
	"testing"

	"github.com/abdul-hamid-achik/mirrorperf/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}

func TestIsValidListResponse(t *testing.T) {
	tests := []struct {
		name     string
		resp     *http.Response
		expected bool
	}{
		{
			name:     "non-empty list",
			resp:     jsonResponse(200, `{"timestamp":"1690000000.000000001","balances":[{"account":"0.0.1001","balance":10}],"links":{"next":null}}`),
			expected: true,
		},
		{
			name:     "empty list",
			resp:     jsonResponse(200, `{"balances":[],"links":{"next":null}}`),
			expected: false,
		},
		{
			name:     "missing list field",
			resp:     jsonResponse(200, `{"links":{"next":null}}`),
			expected: false,
		},
		{
			name:     "list field is an object",
			resp:     jsonResponse(200, `{"balances":{"account":"0.0.1001"}}`),
			expected: false,
		},
		{
			name:     "list field is a string",
			resp:     jsonResponse(200, `{"balances":"[1,2]"}`),
			expected: false,
		},
		{
			name:     "list field is null",
			resp:     jsonResponse(200, `{"balances":null}`),
			expected: false,
		},
		{
			name:     "not found",
			resp:     jsonResponse(404, `{"_status":{"messages":[{"message":"Not found"}]}}`),
			expected: false,
		},
		{
			name:     "server error with list body",
			resp:     jsonResponse(500, `{"balances":[{"account":"0.0.1001","balance":10}]}`),
			expected: false,
		},
		{
			name:     "malformed body",
			resp:     jsonResponse(200, `{"balances":[`),
			expected: false,
		},
		{
			name:     "nil response",
			resp:     nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidListResponse(tt.resp, BalanceListName))
		})
	}
}

func TestIsValidListResponse_OtherListName(t *testing.T) {
	resp := jsonResponse(200, `{"tokens":[{"token_id":"0.0.2000"}],"links":{"next":null}}`)

	assert.True(t, IsValidListResponse(resp, TokenListName))
	assert.False(t, IsValidListResponse(resp, BalanceListName))
}

func TestMatchesSchema(t *testing.T) {
	valid := jsonResponse(200, `{
		"timestamp": "1690000000.000000001",
		"balances": [{"account": "0.0.1001", "balance": 10, "decimals": 2}],
		"links": {"next": "/api/v1/tokens/0.0.2000/balances?account.id=gt:0.0.1001"}
	}`)
	require.NoError(t, MatchesSchema(valid, TokenBalancesSchema))

	invalid := jsonResponse(200, `{"balances": [{"account": 1001, "balance": -1}], "links": {}}`)
	err := MatchesSchema(invalid, TokenBalancesSchema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
	assert.Contains(t, err.Error(), "account")

	missing := jsonResponse(200, `{"links": {}}`)
	err = MatchesSchema(missing, TokenBalancesSchema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "balances")

	assert.Error(t, MatchesSchema(nil, TokenBalancesSchema))
}
