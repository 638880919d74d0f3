package ai

import (
	"fmt"
	"sort"
	"sync"
)

const (
	ProviderCloud = "cloud"
	ProviderLocal = "local"
)

// Registry maps provider identifiers to live backend instances. Instances
// are registered once at startup and shared across requests so breaker state
// survives between calls.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get resolves a provider id to its backend.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown ai provider %q", name)
	}
	return p, nil
}

// Names lists the registered provider identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
