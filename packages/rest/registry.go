package rest

import (
	"fmt"
	"sort"

	"github.com/abdul-hamid-achik/mirrorperf/packages/scenario"
	"github.com/abdul-hamid-achik/mirrorperf/packages/validate"
)

var constructors = []func() *scenario.Scenario{
	TokensIDBalancesTimestamp,
}

var schemas = map[string][]byte{
	"tokensIdBalancesTimestamp": validate.TokenBalancesSchema,
}

// All returns a fresh instance of every registered scenario, sorted by name.
func All() []*scenario.Scenario {
	all := make([]*scenario.Scenario, 0, len(constructors))
	for _, newScenario := range constructors {
		all = append(all, newScenario())
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name() < all[j].Name()
	})
	return all
}

// Lookup finds a scenario by its exact name.
func Lookup(name string) (*scenario.Scenario, error) {
	for _, s := range All() {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown scenario %q", name)
}

// Select resolves names to scenarios; no names means all of them.
func Select(names []string) ([]*scenario.Scenario, error) {
	if len(names) == 0 {
		return All(), nil
	}

	seen := make(map[string]bool, len(names))
	selected := make([]*scenario.Scenario, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		s, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, s)
	}
	return selected, nil
}

// ResponseSchema returns the JSON schema a scenario's successful response
// is expected to match, if one is known.
func ResponseSchema(name string) ([]byte, bool) {
	schema, ok := schemas[name]
	return schema, ok
}
