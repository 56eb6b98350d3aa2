package scenario

import (
	"errors"
	"fmt"
)

// Builder assembles a Scenario. Methods may be called in any order.
type Builder struct {
	name       string
	tags       map[string]string
	thresholds string
	request    RequestFunc
	required   []string
	checks     []check
}

func NewBuilder() *Builder {
	return &Builder{
		tags:       make(map[string]string),
		thresholds: DefaultThresholds,
	}
}

// Name sets the scenario name. It must be unique among all scenarios.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

func (b *Builder) Tags(tags map[string]string) *Builder {
	for k, v := range tags {
		b.tags[k] = v
	}
	return b
}

func (b *Builder) Request(fn RequestFunc) *Builder {
	b.request = fn
	return b
}

func (b *Builder) RequiredParameters(names ...string) *Builder {
	b.required = append(b.required, names...)
	return b
}

func (b *Builder) Check(name string, fn CheckFunc) *Builder {
	b.checks = append(b.checks, check{name: name, fn: fn})
	return b
}

// Thresholds replaces DefaultThresholds for this scenario.
func (b *Builder) Thresholds(thresholds string) *Builder {
	b.thresholds = thresholds
	return b
}

func (b *Builder) Build() (*Scenario, error) {
	if b.name == "" {
		return nil, errors.New("scenario name is required")
	}
	if b.request == nil {
		return nil, fmt.Errorf("scenario %q: request function is required", b.name)
	}
	if len(b.checks) == 0 {
		return nil, fmt.Errorf("scenario %q: at least one check is required", b.name)
	}
	for _, c := range b.checks {
		if c.name == "" || c.fn == nil {
			return nil, fmt.Errorf("scenario %q: checks need a name and a predicate", b.name)
		}
	}

	s := &Scenario{
		name:       b.name,
		tags:       make(map[string]string, len(b.tags)),
		thresholds: b.thresholds,
		request:    b.request,
		required:   append([]string(nil), b.required...),
		checks:     append([]check(nil), b.checks...),
	}
	for k, v := range b.tags {
		s.tags[k] = v
	}
	return s, nil
}

// MustBuild is like Build but panics on error. Meant for package-level
// scenario declarations.
func (b *Builder) MustBuild() *Scenario {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
