package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"wattwise/internal/domain"
)

// Registry resolves provider names for the orchestrator. Raw providers
// are registered under their configured names; when failover is enabled
// the wrapped chain is additionally registered under
// "<primary>+failover" and resolved as the default, so naming a raw
// provider bypasses the chain.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]domain.LLMProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]domain.LLMProvider)}
}

// Register adds a provider under its own Name. A duplicate name means
// the configuration lists the same provider twice, or a raw provider
// was configured with a "+failover" suffix that collides with a chain.
func (r *Registry) Register(p domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, taken := r.byName[name]; taken {
		return fmt.Errorf("provider name %q taken", name)
	}
	r.byName[name] = p
	return nil
}

// Get resolves a provider by name. The error detail carries the
// registered names so a typo or a missing failover chain shows up in
// logs without a second lookup.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[name]
	if !ok {
		detail := fmt.Sprintf("%s (registered: %s)", name, strings.Join(r.names(), ", "))
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, detail)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
