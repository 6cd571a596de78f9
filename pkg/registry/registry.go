// Package registry holds the flows a session can run, keyed by flow key.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/flow"
)

// Registry manages the available flows.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]flow.Flow
}

// NewRegistry creates a registry holding flows.
func NewRegistry(flows ...flow.Flow) (*Registry, error) {
	r := &Registry{
		flows: make(map[string]flow.Flow),
	}
	for _, f := range flows {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a flow. Keys are unique.
func (r *Registry) Register(f flow.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.Key() == "" {
		return errors.New("flow has no key")
	}
	if _, exists := r.flows[f.Key()]; exists {
		return fmt.Errorf("flow %q already registered", f.Key())
	}
	r.flows[f.Key()] = f
	return nil
}

// Get looks a flow up by key.
func (r *Registry) Get(key string) (flow.Flow, error) {
	r.mu.RLock()
	f, ok := r.flows[key]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%q: %w", key, domain.ErrUnknownFlow)
	}
	return f, nil
}

// All returns every flow ordered by key.
func (r *Registry) All() []flow.Flow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]flow.Flow, 0, len(r.flows))
	for _, f := range r.flows {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Enabled returns the flows whose enablement predicate accepts c.
func (r *Registry) Enabled(c flow.Context) []flow.Flow {
	var out []flow.Flow
	for _, f := range r.All() {
		if f.IsEnabled(c) {
			out = append(out, f)
		}
	}
	return out
}

// Valid returns the flows that accept target as a context-sensitive invocation.
func (r *Registry) Valid(target flow.Intersection, c flow.Context) []flow.Flow {
	var out []flow.Flow
	for _, f := range r.All() {
		if f.IsEnabled(c) && f.IsValid(target, c) {
			out = append(out, f)
		}
	}
	return out
}
