package dsl

import (
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
)

// Builder manages the graph construction. Nodes and edges keep the order
// they were declared in.
type Builder struct {
	order []string
	nodes map[string]*NodeBuilder
	edges []domain.Edge
	seen  map[domain.Edge]bool
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
		seen:  make(map[domain.Edge]bool),
	}
}

// Add creates a node of kind. An empty kind is inferred from the id prefix.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string, kind domain.NodeKind) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	if kind == "" {
		kind = domain.InferKind(id)
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id, Kind: kind},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Prompt adds a prompt input node.
func (b *Builder) Prompt(id string) *NodeBuilder { return b.Add(id, domain.KindPrompt) }

// Upload adds an upload input node carrying content.
func (b *Builder) Upload(id, content string) *NodeBuilder {
	return b.Add(id, domain.KindUpload).Payload(content)
}

// Agent adds an agent node.
func (b *Builder) Agent(id string, kind domain.NodeKind) *NodeBuilder { return b.Add(id, kind) }

// Response adds the output node.
func (b *Builder) Response(id string) *NodeBuilder { return b.Add(id, domain.KindResponse) }

// Chain adds an edge between each consecutive pair of ids.
func (b *Builder) Chain(ids ...string) *Builder {
	for i := 1; i < len(ids); i++ {
		b.connect(ids[i-1], ids[i])
	}
	return b
}

func (b *Builder) connect(source, target string) {
	e := domain.Edge{Source: source, Target: target}
	if b.seen[e] {
		return
	}
	b.seen[e] = true
	b.edges = append(b.edges, e)
}

// Build returns the graph. Edges naming undeclared nodes are an error.
func (b *Builder) Build() (domain.WorkflowGraph, error) {
	g := domain.WorkflowGraph{
		Nodes: make([]domain.Node, 0, len(b.order)),
		Edges: append([]domain.Edge(nil), b.edges...),
	}
	for _, id := range b.order {
		g.Nodes = append(g.Nodes, b.nodes[id].Build())
	}
	for _, e := range g.Edges {
		for _, id := range []string{e.Source, e.Target} {
			if _, ok := b.nodes[id]; !ok {
				return domain.WorkflowGraph{}, fmt.Errorf("edge %s -> %s: node %q is not declared", e.Source, e.Target, id)
			}
		}
	}
	return g, nil
}

// Workflow builds the graph into a named workflow.
func (b *Builder) Workflow(id, name string) (*domain.Workflow, error) {
	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &domain.Workflow{ID: id, Name: name, Nodes: g.Nodes, Edges: g.Edges}, nil
}

// MustBuild is like Build but panics on error. Intended for tests and
// package-level graphs.
func (b *Builder) MustBuild() domain.WorkflowGraph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
