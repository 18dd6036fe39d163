package runtime

import (
	"github.com/aretw0/lattice/pkg/domain"
)

// Graph is a validated workflow graph. Every edge references existing nodes.
type Graph struct {
	ids   []string
	index map[string]int
	nodes map[string]domain.Node
	edges []domain.Edge
	deps  map[string][]string
	succ  map[string][]string

	descendants map[string]map[string]bool
}

// BuildGraph validates a definition. Defects are returned as
// *domain.GraphValidationError values and dropped from the graph; they are
// never fatal.
func BuildGraph(def domain.WorkflowGraph) (*Graph, []error) {
	var warnings []error
	g := newGraph()

	for _, n := range def.Nodes {
		if n.ID == "" {
			warnings = append(warnings, &domain.GraphValidationError{Reason: "node without id"})
			continue
		}
		if _, dup := g.nodes[n.ID]; dup {
			warnings = append(warnings, &domain.GraphValidationError{NodeID: n.ID, Reason: "duplicate node id"})
			continue
		}
		if n.Kind == "" {
			n.Kind = domain.InferKind(n.ID)
		}
		g.addNode(n)
	}

	seen := make(map[domain.Edge]bool, len(def.Edges))
	for _, e := range def.Edges {
		_, okSrc := g.nodes[e.Source]
		_, okDst := g.nodes[e.Target]
		switch {
		case !okSrc && !okDst:
			warnings = append(warnings, &domain.GraphValidationError{Source: e.Source, Target: e.Target, Reason: "unknown source and target"})
			continue
		case !okSrc:
			warnings = append(warnings, &domain.GraphValidationError{Source: e.Source, Target: e.Target, Reason: "unknown source"})
			continue
		case !okDst:
			warnings = append(warnings, &domain.GraphValidationError{Source: e.Source, Target: e.Target, Reason: "unknown target"})
			continue
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		g.addEdge(e)
	}

	return g, warnings
}

func newGraph() *Graph {
	return &Graph{
		index: make(map[string]int),
		nodes: make(map[string]domain.Node),
		deps:  make(map[string][]string),
		succ:  make(map[string][]string),
	}
}

func (g *Graph) addNode(n domain.Node) {
	g.index[n.ID] = len(g.ids)
	g.ids = append(g.ids, n.ID)
	g.nodes[n.ID] = n
}

func (g *Graph) addEdge(e domain.Edge) {
	g.edges = append(g.edges, e)
	g.deps[e.Target] = append(g.deps[e.Target], e.Source)
	g.succ[e.Source] = append(g.succ[e.Source], e.Target)
}

// IDs returns the node ids in declaration order.
func (g *Graph) IDs() []string {
	return append([]string(nil), g.ids...)
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.ids) }

// Node looks up a node by id.
func (g *Graph) Node(id string) (domain.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Has reports whether id is part of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Edges returns the valid edges in declaration order.
func (g *Graph) Edges() []domain.Edge {
	return append([]domain.Edge(nil), g.edges...)
}

// Dependencies returns the static predecessors of id.
func (g *Graph) Dependencies(id string) []string {
	return g.deps[id]
}

// Successors returns the direct successors of id.
func (g *Graph) Successors(id string) []string {
	return g.succ[id]
}

// InDegree returns the number of incoming edges of id.
func (g *Graph) InDegree(id string) int {
	return len(g.deps[id])
}

// IsDescendant reports whether target is reachable from source over at least one edge.
func (g *Graph) IsDescendant(source, target string) bool {
	if g.descendants == nil {
		g.descendants = make(map[string]map[string]bool)
	}
	set, ok := g.descendants[source]
	if !ok {
		set = g.bfs([]string{source}, false)
		g.descendants[source] = set
	}
	return set[target]
}

// Descendants returns the nodes reachable from id, in declaration order.
func (g *Graph) Descendants(id string) []domain.Node {
	var out []domain.Node
	for _, other := range g.ids {
		if g.IsDescendant(id, other) {
			out = append(out, g.nodes[other])
		}
	}
	return out
}

// bfs returns the closure over forward edges. Sources are included when
// includeSources is set; otherwise only nodes reached through an edge are.
func (g *Graph) bfs(sources []string, includeSources bool) map[string]bool {
	visited := make(map[string]bool)
	queue := make([]string, 0, len(sources))
	for _, s := range sources {
		if includeSources {
			visited[s] = true
		}
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.succ[current] {
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return visited
}

// subgraph keeps the listed nodes and the edges between them.
func (g *Graph) subgraph(keep map[string]bool) *Graph {
	sub := newGraph()
	for _, id := range g.ids {
		if keep[id] {
			sub.addNode(g.nodes[id])
		}
	}
	for _, e := range g.edges {
		if keep[e.Source] && keep[e.Target] {
			sub.addEdge(e)
		}
	}
	return sub
}
