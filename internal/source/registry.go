package source

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Registry holds the configured sources keyed by slug, preserving
// registration order so sweeps are deterministic.
type Registry struct {
	sources map[string]Source
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source. Registering a duplicate slug is a programming
// error and panics.
func (r *Registry) Register(s Source) {
	slug := s.Slug()
	if _, ok := r.sources[slug]; ok {
		panic("source: duplicate registration of " + slug)
	}
	r.sources[slug] = s
	r.order = append(r.order, slug)
}

// Get returns the source for a slug.
func (r *Registry) Get(slug string) (Source, error) {
	s, ok := r.sources[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return nil, eris.Errorf("source: unknown source %q (known: %s)",
			slug, strings.Join(r.order, ", "))
	}
	return s, nil
}

// Select resolves a slug list into sources, in the given order. An empty
// list selects every registered source in registration order.
func (r *Registry) Select(slugs []string) ([]Source, error) {
	if len(slugs) == 0 {
		slugs = r.order
	}
	selected := make([]Source, 0, len(slugs))
	for _, slug := range slugs {
		s, err := r.Get(slug)
		if err != nil {
			return nil, err
		}
		selected = append(selected, s)
	}
	return selected, nil
}

// DefaultRegistry wires up every built-in retailer adapter.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	r.Register(NewPyaterochka(deps))
	r.Register(NewPerekrestok(deps))
	r.Register(NewMagnit(deps))
	r.Register(NewLenta(deps))
	r.Register(NewAuchan(deps))
	return r
}

// Slugs returns all registered slugs in registration order.
func (r *Registry) Slugs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
