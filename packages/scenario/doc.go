// Package scenario defines the contract between load-test scenarios and the
// stress engine.
//
// A scenario is declared once with the fluent Builder:
//
//	s := scenario.NewBuilder().
//		Name("tokensIdBalancesTimestamp").
//		Tags(map[string]string{"url": "/tokens/{id}/balances?timestamp={timestamp}"}).
//		Request(func(ctx context.Context, c scenario.Client, p scenario.Parameters) (*http.Response, error) {
//			return c.Get(ctx, p.Get(scenario.BaseURLPrefix)+"/tokens/"+p.Get(scenario.DefaultTokenID), nil)
//		}).
//		RequiredParameters(scenario.DefaultTokenID).
//		Check("Tokens OK", isValid).
//		MustBuild()
//
// The engine calls Setup once before any traffic and Run once per iteration.
package scenario
