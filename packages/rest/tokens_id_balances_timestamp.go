package rest

import (
	"context"

	"github.com/abdul-hamid-achik/mirrorperf/packages/http"
	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
	"github.com/abdul-hamid-achik/mirrorperf/packages/validate"
)

const tokensIDBalancesTimestampURLTag = "/tokens/{id}/balances?timestamp={timestamp}"

// TokensIDBalancesTimestamp fetches a token's balances at a fixed timestamp.
func TokensIDBalancesTimestamp() *scenario.Scenario {
	return scenario.NewBuilder().
		Name("tokensIdBalancesTimestamp").
		Tags(map[string]string{"url": tokensIDBalancesTimestampURLTag}).
		Request(func(ctx context.Context, c scenario.Client, p scenario.Parameters) (*http.Response, error) {
			url := p[scenario.BaseURLPrefix] + "/tokens/" + p[scenario.DefaultTokenID] +
				"/balances?timestamp=" + p[scenario.DefaultTokenBalanceTimestamp]
			return c.Get(ctx, url, nil)
		}).
		RequiredParameters(scenario.DefaultTokenID).
		Check("Tokens id balances timestamp OK", func(r *http.Response) bool {
			return validate.IsValidListResponse(r, validate.BalanceListName)
		}).
		MustBuild()
}
