// Package params discovers scenario parameters from a running mirror node
// when they are not supplied by the user.
package params

import (
	"context"
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
	"github.com/tidwall/gjson"
)

// ErrNoBaseURL is returned when neither BASE_URL nor BASE_URL_PREFIX is set.
var ErrNoBaseURL = errors.New("BASE_URL or BASE_URL_PREFIX is required for discovery")

// DiscoveryError reports a parameter that could not be read from the mirror.
type DiscoveryError struct {
	Parameter string
	URL       string
	Reason    string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s from %s: %s", e.Parameter, e.URL, e.Reason)
}

// Discover returns a copy of p with missing parameters filled from the
// mirror. Values already present are kept.
func Discover(ctx context.Context, c scenario.Client, p scenario.Parameters) (scenario.Parameters, error) {
	out := p.Clone()
	out.DeriveBaseURLPrefix()

	prefix := out.Get(scenario.BaseURLPrefix)
	if prefix == "" {
		return nil, ErrNoBaseURL
	}

	if !out.Has(scenario.DefaultTokenID) {
		url := prefix + "/tokens?type=FUNGIBLE_COMMON&limit=1&order=desc"
		id, err := lookup(ctx, c, url, scenario.DefaultTokenID, "tokens.0.token_id")
		if err != nil {
			return nil, err
		}
		out[scenario.DefaultTokenID] = id
	}

	if !out.Has(scenario.DefaultTokenBalanceTimestamp) {
		url := prefix + "/tokens/" + out.Get(scenario.DefaultTokenID) + "/balances?limit=1"
		ts, err := lookup(ctx, c, url, scenario.DefaultTokenBalanceTimestamp, "timestamp")
		if err != nil {
			return nil, err
		}
		out[scenario.DefaultTokenBalanceTimestamp] = ts
	}

	return out, nil
}

func lookup(ctx context.Context, c scenario.Client, url, name, path string) (string, error) {
	resp, err := c.Get(ctx, url, nil)
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", name, err)
	}
	if !resp.IsSuccess() {
		return "", &DiscoveryError{Parameter: name, URL: url, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	if !gjson.ValidBytes(resp.Body) {
		return "", &DiscoveryError{Parameter: name, URL: url, Reason: "response is not JSON"}
	}

	value := gjson.GetBytes(resp.Body, path)
	if !value.Exists() || value.Type == gjson.Null || value.String() == "" {
		return "", &DiscoveryError{Parameter: name, URL: url, Reason: path + " not found"}
	}
	return value.String(), nil
}
