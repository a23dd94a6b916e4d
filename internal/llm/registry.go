package llm

import (
	"fmt"
	"sort"
	"strings"
)

type Registry struct {
	providers   map[string]Provider
	defaultName string
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

func (r *Registry) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	name := strings.ToLower(strings.TrimSpace(p.Name()))
	if name == "" {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[name] = p
}

// RegisterAlias exposes an already-registered provider under a second
// name, e.g. "claude" for "anthropic".
func (r *Registry) RegisterAlias(alias string, p Provider) {
	if r == nil || p == nil {
		return
	}
	alias = strings.ToLower(strings.TrimSpace(alias))
	if alias == "" {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[alias] = p
}

func (r *Registry) SetDefault(name string) {
	if r == nil {
		return
	}
	r.defaultName = strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Get(name string) (Provider, bool) {
	if r == nil || r.providers == nil {
		return nil, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, false
	}
	p, ok := r.providers[name]
	return p, ok
}

// ForModel resolves the provider a model ref runs on. A ref without a
// provider falls back to the registry default, then to the single
// registered provider if there is exactly one. Resolution failure is a
// configuration error.
func (r *Registry) ForModel(ref ModelRef) (Provider, error) {
	if r == nil || len(r.providers) == 0 {
		return nil, fmt.Errorf("llm: no providers configured")
	}

	name := ref.Provider
	if name == "" {
		name = r.defaultName
	}
	if name == "" && len(r.providers) == 1 {
		for _, p := range r.providers {
			return p, nil
		}
	}

	if p, ok := r.Get(name); ok {
		return p, nil
	}

	available := make([]string, 0, len(r.providers))
	for k := range r.providers {
		available = append(available, k)
	}
	sort.Strings(available)
	return nil, fmt.Errorf("llm: provider %q not configured (available: %s)", name, strings.Join(available, ", "))
}
