// Package agents provides the built-in agent kinds and the registry the
// kernel resolves them from.
package agents

import (
	"sort"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Registry maps node kinds to agents. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[domain.NodeKind]ports.Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[domain.NodeKind]ports.Agent),
	}
}

// Register adds an agent for kind.
// If an agent for the same kind exists, it is overwritten.
func (r *Registry) Register(kind domain.NodeKind, agent ports.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[kind] = agent
}

// Lookup implements ports.AgentResolver.
func (r *Registry) Lookup(kind domain.NodeKind) (ports.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[kind]
	return a, ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []domain.NodeKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.NodeKind, 0, len(r.agents))
	for k := range r.agents {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ ports.AgentResolver = (*Registry)(nil)
