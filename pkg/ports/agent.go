package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// AgentRequest is the per-call input built by the kernel.
type AgentRequest struct {
	// Message is the current user message of the run.
	Message string
	// Context is the live run context. Agents must not write to it directly;
	// changes go through AgentResult.ContextUpdates.
	Context *domain.ExecutionContext
	// Settings are the node settings, opaque to the kernel.
	Settings map[string]any
	// Model overrides the agent's default model when non-empty.
	Model string
	// Node is the node being executed.
	Node domain.Node
	// Downstream lists the reachable nodes that depend on Node, directly or not.
	Downstream []domain.Node
	// Reachable lists every reachable node id of the run.
	Reachable []string
	// KnowledgeBase scopes retrieval for this run.
	KnowledgeBase string
}

// Agent executes one node kind.
type Agent interface {
	Execute(ctx context.Context, req AgentRequest) (*domain.AgentResult, error)
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(ctx context.Context, req AgentRequest) (*domain.AgentResult, error)

// Execute calls f.
func (f AgentFunc) Execute(ctx context.Context, req AgentRequest) (*domain.AgentResult, error) {
	return f(ctx, req)
}

// AgentResolver maps a node kind to its implementation.
type AgentResolver interface {
	Lookup(kind domain.NodeKind) (Agent, bool)
}
