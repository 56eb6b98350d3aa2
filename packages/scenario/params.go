package scenario

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Well-known parameter names shared by the REST scenarios.
const (
	BaseURL                      = "BASE_URL"
	BaseURLPrefix                = "BASE_URL_PREFIX"
	DefaultTokenID               = "DEFAULT_TOKEN_ID"
	DefaultTokenBalanceTimestamp = "DEFAULT_TOKEN_BALANCE_TIMESTAMP"
)

// APIPrefix is appended to BASE_URL to derive BASE_URL_PREFIX.
const APIPrefix = "/api/v1"

// ErrMissingParameters is returned (wrapped) by Setup when required
// parameters are absent.
var ErrMissingParameters = errors.New("missing required parameters")

// MissingParametersError names the parameters a scenario could not find.
type MissingParametersError struct {
	Scenario string
	Names    []string
}

func (e *MissingParametersError) Error() string {
	return fmt.Sprintf("scenario %q: %s: %s", e.Scenario, ErrMissingParameters, strings.Join(e.Names, ", "))
}

func (e *MissingParametersError) Unwrap() error {
	return ErrMissingParameters
}

// Parameters maps test parameter names to values.
type Parameters map[string]string

// Get returns the value of name or "" when absent.
func (p Parameters) Get(name string) string {
	return p[name]
}

// Has reports whether name is present with a non-empty value.
func (p Parameters) Has(name string) bool {
	return p[name] != ""
}

// Missing returns the subset of names that are absent or empty, sorted.
func (p Parameters) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !p.Has(name) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Clone returns a shallow copy.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// DeriveBaseURLPrefix fills BASE_URL_PREFIX from BASE_URL when only the
// latter is set. The receiver is modified in place.
func (p Parameters) DeriveBaseURLPrefix() {
	if p.Has(BaseURLPrefix) || !p.Has(BaseURL) {
		return
	}
	p[BaseURLPrefix] = strings.TrimSuffix(p[BaseURL], "/") + APIPrefix
}
