package lattice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/lattice/examples"
	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/internal/validator"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/agents"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/llm"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/retrieval"
	"github.com/aretw0/lattice/pkg/workflows"
)

// Engine is the high-level entry point for the lattice library.
// It wires the kernel to the built-in agents, a model provider, retrieval
// and workflow storage.
type Engine struct {
	kernel    *runtime.Kernel
	agents    ports.AgentResolver
	routing   runtime.RoutingTable
	provider  *llm.Provider
	retrieval *retrieval.Service
	workflows *workflows.Service
	examples  ports.WorkflowLibrary
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProvider sets the model provider. Defaults to the offline local provider.
func WithProvider(p *llm.Provider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithRetrieval sets the retrieval service. Defaults to an in-memory store
// embedding with the provider.
func WithRetrieval(svc *retrieval.Service) Option {
	return func(e *Engine) {
		e.retrieval = svc
	}
}

// WithWorkflows sets the saved workflow service. Defaults to memory storage.
func WithWorkflows(svc *workflows.Service) Option {
	return func(e *Engine) {
		e.workflows = svc
	}
}

// WithExamples sets the example library. Defaults to the built-in examples.
func WithExamples(lib ports.WorkflowLibrary) Option {
	return func(e *Engine) {
		e.examples = lib
	}
}

// WithAgents replaces the built-in agent registry.
func WithAgents(r ports.AgentResolver) Option {
	return func(e *Engine) {
		e.agents = r
	}
}

// WithRoutingTable replaces the default router branch groups.
func WithRoutingTable(rt runtime.RoutingTable) Option {
	return func(e *Engine) {
		e.routing = rt
	}
}

// New creates an Engine. Without options it runs fully offline.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		routing: runtime.DefaultRoutingTable(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.provider == nil {
		p, err := llm.NewFromConfig(context.Background(), llm.Config{Provider: llm.ProviderLocal}, e.logger)
		if err != nil {
			return nil, fmt.Errorf("local provider: %w", err)
		}
		e.provider = p
	}
	if e.retrieval == nil {
		e.retrieval = retrieval.NewService(retrieval.NewMemoryStore(), e.provider.Embedder,
			retrieval.WithReranker(e.provider.Chat, e.provider.Models.Small),
			retrieval.WithLogger(e.logger))
	}
	if e.workflows == nil {
		e.workflows = workflows.New(memory.NewStore(), workflows.WithLogger(e.logger))
	}
	if e.examples == nil {
		wfs, err := examples.Workflows()
		if err != nil {
			return nil, fmt.Errorf("load built-in examples: %w", err)
		}
		e.examples = memory.NewLibrary(wfs...)
	}
	if e.agents == nil {
		e.agents = agents.NewDefaultRegistry(agents.Deps{
			LLM:       e.provider.Chat,
			Models:    e.provider.Models,
			Retriever: e.retrieval,
			Images:    e.provider.Images,
			Branches:  e.routing.BranchKinds,
			Logger:    e.logger,
		})
	}

	e.kernel = runtime.New(e.agents,
		runtime.WithRoutingTable(e.routing),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithLogger(e.logger),
	)
	return e, nil
}

// Execute runs req, streaming events to sink. A nil sink discards them.
func (e *Engine) Execute(ctx context.Context, req domain.ExecuteRequest, sink ports.EventSink) (*domain.RunResult, error) {
	if sink == nil {
		sink = ports.SinkFunc(func(context.Context, domain.Event) error { return nil })
	}
	return e.kernel.Run(ctx, req, sink)
}

// Run executes def with message and returns the result.
func (e *Engine) Run(ctx context.Context, def domain.WorkflowGraph, message string) (*domain.RunResult, error) {
	return e.Execute(ctx, domain.ExecuteRequest{Message: message, Graph: def}, nil)
}

// Lookup finds a workflow by id among the user's saved workflows and then
// the examples.
func (e *Engine) Lookup(ctx context.Context, userID, id string) (*domain.Workflow, error) {
	wf, err := e.workflows.Get(ctx, userID, id)
	if err == nil {
		return wf, nil
	}
	if !errors.Is(err, domain.ErrWorkflowNotFound) {
		return nil, err
	}
	return e.examples.Get(ctx, id)
}

// Validate checks def against the engine's agents without running it.
func (e *Engine) Validate(def domain.WorkflowGraph) validator.Report {
	return validator.Validate(def, e.agents, e.routing)
}

// Mermaid renders def as a Mermaid flowchart. With a result the node
// outcomes are painted on the graph.
func (e *Engine) Mermaid(def domain.WorkflowGraph, result *domain.RunResult) string {
	var overlay *graph.GraphOverlay
	if result != nil {
		overlay = &graph.GraphOverlay{States: result.States}
	}
	return graph.GenerateMermaid(def, e.routing, overlay)
}

// Kinds lists the node kinds the engine can execute.
func (e *Engine) Kinds() []domain.NodeKind {
	if r, ok := e.agents.(*agents.Registry); ok {
		return r.Kinds()
	}
	var out []domain.NodeKind
	for _, k := range domain.AgentKinds() {
		if _, ok := e.agents.Lookup(k); ok {
			out = append(out, k)
		}
	}
	return out
}

// Provider returns the model provider.
func (e *Engine) Provider() *llm.Provider { return e.provider }

// Retrieval returns the retrieval service.
func (e *Engine) Retrieval() *retrieval.Service { return e.retrieval }

// Workflows returns the saved workflow service.
func (e *Engine) Workflows() *workflows.Service { return e.workflows }

// Examples returns the example workflow library.
func (e *Engine) Examples() ports.WorkflowLibrary { return e.examples }
