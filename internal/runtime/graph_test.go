package runtime_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraph_DropsDanglingEdges(t *testing.T) {
	def := domain.WorkflowGraph{
		Nodes: []domain.Node{node("prompt-1", domain.KindPrompt), node("synthesis-1", domain.KindSynthesis)},
		Edges: []domain.Edge{
			edge("prompt-1", "synthesis-1"),
			edge("prompt-1", "ghost"),
			edge("ghost", "synthesis-1"),
		},
	}

	g, warnings := runtime.BuildGraph(def)

	require.Len(t, warnings, 2)
	var vErr *domain.GraphValidationError
	assert.True(t, errors.As(warnings[0], &vErr))
	assert.Equal(t, "ghost", vErr.Target)
	assert.Equal(t, []domain.Edge{edge("prompt-1", "synthesis-1")}, g.Edges())
	assert.Equal(t, []string{"prompt-1"}, g.Dependencies("synthesis-1"))
}

func TestBuildGraph_InfersKindFromPrefix(t *testing.T) {
	def := domain.WorkflowGraph{Nodes: []domain.Node{{ID: "semantic_search-2"}, {ID: "response-1"}}}

	g, warnings := runtime.BuildGraph(def)
	require.Empty(t, warnings)

	n, ok := g.Node("semantic_search-2")
	require.True(t, ok)
	assert.Equal(t, domain.KindSemanticSearch, n.Kind)
	n, _ = g.Node("response-1")
	assert.Equal(t, domain.KindResponse, n.Kind)
}

func TestBuildGraph_DuplicateIDs(t *testing.T) {
	def := domain.WorkflowGraph{Nodes: []domain.Node{
		node("a", domain.KindPrompt),
		node("a", domain.KindSynthesis),
	}}

	g, warnings := runtime.BuildGraph(def)
	require.Len(t, warnings, 1)
	n, _ := g.Node("a")
	assert.Equal(t, domain.KindPrompt, n.Kind, "first declaration wins")
}

func TestBuildGraph_Descendants(t *testing.T) {
	def := domain.WorkflowGraph{
		Nodes: []domain.Node{node("a", domain.KindPrompt), node("b", "x"), node("c", "y"), node("d", "z")},
		Edges: []domain.Edge{edge("a", "b"), edge("b", "c")},
	}
	g, _ := runtime.BuildGraph(def)

	assert.True(t, g.IsDescendant("a", "c"))
	assert.False(t, g.IsDescendant("c", "a"))
	assert.False(t, g.IsDescendant("a", "a"))
	assert.False(t, g.IsDescendant("a", "d"))

	var ids []string
	for _, n := range g.Descendants("a") {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestReachable_Sources(t *testing.T) {
	// "upload-1" is tagged as input even though an edge points at it.
	// "island-1"/"island-2" form a cycle nothing feeds and is dropped.
	def := domain.WorkflowGraph{
		Nodes: []domain.Node{
			node("prompt-1", domain.KindPrompt),
			node("synthesis-1", domain.KindSynthesis),
			node("upload-1", domain.KindUpload),
			node("transformer-1", domain.KindTransformer),
			node("island-1", domain.KindSampler),
			node("island-2", domain.KindSampler),
			node("orphan-1", domain.KindFormatting),
		},
		Edges: []domain.Edge{
			edge("prompt-1", "synthesis-1"),
			edge("island-1", "upload-1"),
			edge("upload-1", "transformer-1"),
			edge("island-1", "island-2"),
			edge("island-2", "island-1"),
		},
	}
	g, _ := runtime.BuildGraph(def)

	assert.Equal(t, []string{"prompt-1", "upload-1", "orphan-1"}, runtime.Sources(g))

	sub, dropped := runtime.Prune(g)
	assert.ElementsMatch(t, []string{"island-1", "island-2"}, dropped)
	assert.ElementsMatch(t, []string{"prompt-1", "synthesis-1", "upload-1", "transformer-1", "orphan-1"}, sub.IDs())
	for _, e := range sub.Edges() {
		assert.NotContains(t, []string{"island-1", "island-2"}, e.Source)
	}
}

func TestReachable_EqualsBFSClosure(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		def := randomGraph(rng, 12, 0.2, true)
		g, _ := runtime.BuildGraph(def)

		// Reference closure computed independently.
		want := map[string]bool{}
		var frontier []string
		for _, n := range def.Nodes {
			incoming := false
			for _, e := range def.Edges {
				if e.Target == n.ID {
					incoming = true
				}
			}
			if !incoming || n.Kind.IsInput() {
				want[n.ID] = true
				frontier = append(frontier, n.ID)
			}
		}
		for len(frontier) > 0 {
			cur := frontier[0]
			frontier = frontier[1:]
			for _, e := range def.Edges {
				if e.Source == cur && !want[e.Target] {
					want[e.Target] = true
					frontier = append(frontier, e.Target)
				}
			}
		}

		assert.Equal(t, want, runtime.Reachable(g))
	}
}

// randomGraph builds a graph over n nodes. With acyclic set, edges only go
// from lower to higher index.
func randomGraph(rng *rand.Rand, n int, density float64, acyclic bool) domain.WorkflowGraph {
	kinds := []domain.NodeKind{domain.KindPrompt, domain.KindSynthesis, domain.KindSampler, domain.KindFormatting, domain.KindResponse}
	var def domain.WorkflowGraph
	for i := 0; i < n; i++ {
		def.Nodes = append(def.Nodes, domain.Node{ID: string(rune('a'+i)) + "-n", Kind: kinds[rng.Intn(len(kinds))]})
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || (acyclic && j < i) {
				continue
			}
			if rng.Float64() < density {
				def.Edges = append(def.Edges, edge(def.Nodes[i].ID, def.Nodes[j].ID))
			}
		}
	}
	return def
}
