package dsl

import "github.com/aretw0/lattice/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Set adds one agent setting, for example Set("maxWords", 200).
func (n *NodeBuilder) Set(key string, value any) *NodeBuilder {
	if n.node.Settings == nil {
		n.node.Settings = make(map[string]any)
	}
	n.node.Settings[key] = value
	return n
}

// Settings merges settings into the node's settings.
func (n *NodeBuilder) Settings(settings map[string]any) *NodeBuilder {
	for k, v := range settings {
		n.Set(k, v)
	}
	return n
}

// Payload sets the literal content of an input node.
func (n *NodeBuilder) Payload(content string) *NodeBuilder {
	n.node.Payload = content
	return n
}

// To adds an edge from this node to each target. Targets need not be
// declared yet.
func (n *NodeBuilder) To(targets ...string) *NodeBuilder {
	for _, t := range targets {
		n.builder.connect(n.node.ID, t)
	}
	return n
}

// From adds an edge from each source to this node.
func (n *NodeBuilder) From(sources ...string) *NodeBuilder {
	for _, s := range sources {
		n.builder.connect(s, n.node.ID)
	}
	return n
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	out := n.node
	if n.node.Settings != nil {
		out.Settings = make(map[string]any, len(n.node.Settings))
		for k, v := range n.node.Settings {
			out.Settings[k] = v
		}
	}
	return out
}
