package runtime_test

import (
	"testing"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routedGraph(t *testing.T) *runtime.Graph {
	t.Helper()
	def := domain.WorkflowGraph{
		Nodes: []domain.Node{
			node("in", domain.KindPrompt),
			node("router", domain.KindOrchestrator),
			node("img", domain.KindImageGenerator),
			node("txt", domain.KindSampler),
			node("after-txt", domain.KindFormatting),
			node("out", domain.KindResponse),
		},
		Edges: []domain.Edge{
			edge("in", "router"),
			edge("router", "img"),
			edge("router", "txt"),
			edge("txt", "after-txt"),
			edge("img", "out"),
			edge("after-txt", "out"),
		},
	}
	g, warnings := runtime.BuildGraph(def)
	require.Empty(t, warnings)
	return g
}

func TestPruner_SkipsOnUnresolvedDependency(t *testing.T) {
	g := routedGraph(t)
	p := runtime.NewPruner(g, runtime.DefaultRoutingTable())
	states := domain.NewStateTable(g.IDs())

	v, reason := p.Evaluate("router", states, nil)
	assert.Equal(t, runtime.VerdictSkip, v)
	assert.Equal(t, "missing dependency in", reason)
}

func TestPruner_RouterExclusion(t *testing.T) {
	g := routedGraph(t)
	p := runtime.NewPruner(g, runtime.DefaultRoutingTable())
	states := domain.NewStateTable(g.IDs())
	states.Resolve("in", domain.StateExecuted)
	states.Resolve("router", domain.StateExecuted)
	decisions := map[string]*domain.RouteDecision{
		"router": {Router: "router", Selected: []domain.NodeKind{domain.KindImageGenerator}},
	}

	v, _ := p.Evaluate("img", states, decisions)
	assert.Equal(t, runtime.VerdictExecute, v)

	v, reason := p.Evaluate("txt", states, decisions)
	assert.Equal(t, runtime.VerdictExclude, v)
	assert.Equal(t, "Excluded (not selected by router)", reason)
}

func TestPruner_EmptyDecisionKeepsDefaultGroup(t *testing.T) {
	g := routedGraph(t)
	p := runtime.NewPruner(g, runtime.DefaultRoutingTable())
	states := domain.NewStateTable(g.IDs())
	states.Resolve("in", domain.StateExecuted)
	states.Resolve("router", domain.StateExecuted)
	decisions := map[string]*domain.RouteDecision{"router": {Router: "router"}}

	v, _ := p.Evaluate("txt", states, decisions)
	assert.Equal(t, runtime.VerdictExecute, v)
	v, _ = p.Evaluate("img", states, decisions)
	assert.Equal(t, runtime.VerdictExclude, v)
}

func TestPruner_SuppressedByImages(t *testing.T) {
	g := routedGraph(t)
	p := runtime.NewPruner(g, runtime.DefaultRoutingTable())
	c := domain.NewExecutionContext("q")

	_, ok := p.Suppressed("txt", c)
	assert.False(t, ok)

	c.Merge(map[string]any{domain.ToolImages: []domain.ImageOutput{{Prompt: "cat"}}})
	rule, ok := p.Suppressed("txt", c)
	require.True(t, ok)
	assert.Equal(t, "Excluded (image generation request)", rule.Reason)
	assert.Equal(t, []string{domain.KeyCandidates}, rule.Clear)

	_, ok = p.Suppressed("img", c)
	assert.False(t, ok, "visual group has no suppression rule")
	_, ok = p.Suppressed("after-txt", c)
	assert.False(t, ok, "neutral kinds are never suppressed")
}

func TestPruner_TransitiveExclusion(t *testing.T) {
	g := routedGraph(t)
	p := runtime.NewPruner(g, runtime.DefaultRoutingTable())
	states := domain.NewStateTable(g.IDs())
	for _, id := range []string{"in", "router", "img"} {
		states.Resolve(id, domain.StateExecuted)
	}
	states.Resolve("txt", domain.StateExcluded)

	v, reason := p.Evaluate("after-txt", states, nil)
	assert.Equal(t, runtime.VerdictExclude, v)
	assert.Equal(t, "Excluded (all dependencies excluded)", reason)

	// One live dependency is enough to run.
	states.Resolve("after-txt", domain.StateExcluded)
	v, _ = p.Evaluate("out", states, nil)
	assert.Equal(t, runtime.VerdictExecute, v)
}

func TestPruner_RouterRuleWinsOverTransitive(t *testing.T) {
	// sampler under an excluded parent is still reported as not selected.
	def := domain.WorkflowGraph{
		Nodes: []domain.Node{
			node("in", domain.KindPrompt),
			node("router", domain.KindOrchestrator),
			node("img", domain.KindImageGenerator),
			node("txt", domain.KindSampler),
		},
		Edges: []domain.Edge{edge("in", "router"), edge("router", "img"), edge("img", "txt")},
	}
	g, _ := runtime.BuildGraph(def)
	p := runtime.NewPruner(g, runtime.DefaultRoutingTable())
	states := domain.NewStateTable(g.IDs())
	states.Resolve("in", domain.StateExecuted)
	states.Resolve("router", domain.StateExecuted)
	states.Resolve("img", domain.StateExcluded)
	decisions := map[string]*domain.RouteDecision{"router": {Router: "router", Selected: []domain.NodeKind{"unknown_tool"}}}

	v, reason := p.Evaluate("txt", states, decisions)
	assert.Equal(t, runtime.VerdictExclude, v)
	assert.Equal(t, "Excluded (all dependencies excluded)", reason, "sampler is selected by default")

	decisions["router"].Selected = []domain.NodeKind{domain.KindImageGenerator}
	v, reason = p.Evaluate("txt", states, decisions)
	assert.Equal(t, runtime.VerdictExclude, v)
	assert.Equal(t, "Excluded (not selected by router)", reason)
}

func TestPruner_ExcludeTransitivelyReachesFixedPoint(t *testing.T) {
	def := domain.WorkflowGraph{
		Nodes: []domain.Node{
			node("a", domain.KindPrompt),
			node("b", domain.KindSampler),
			node("c", domain.KindFormatting),
			node("d", domain.KindTransformer),
			node("e", domain.KindSynthesis),
		},
		Edges: []domain.Edge{edge("a", "b"), edge("b", "c"), edge("c", "d"), edge("a", "e"), edge("d", "e")},
	}
	g, _ := runtime.BuildGraph(def)
	p := runtime.NewPruner(g, runtime.DefaultRoutingTable())
	states := domain.NewStateTable(g.IDs())
	states.Resolve("a", domain.StateExecuted)
	states.Resolve("b", domain.StateExcluded)

	assert.Equal(t, 2, p.ExcludeTransitively(states))
	assert.Equal(t, domain.StateExcluded, states.Get("c"))
	assert.Equal(t, domain.StateExcluded, states.Get("d"))
	assert.Equal(t, domain.StatePending, states.Get("e"))

	assert.Zero(t, p.ExcludeTransitively(states))
}

func TestRoutingTable(t *testing.T) {
	rt := runtime.DefaultRoutingTable()

	assert.True(t, rt.IsRouter(domain.KindOrchestrator))
	assert.False(t, rt.IsRouter(domain.KindSupervisor))

	_, ok := rt.GroupOf(domain.KindSynthesis)
	assert.False(t, ok)

	kinds := rt.BranchKinds([]domain.Node{
		node("a", domain.KindSampler),
		node("b", domain.KindSynthesis),
		node("c", domain.KindImageGenerator),
		node("d", domain.KindSampler),
	})
	assert.Equal(t, []domain.NodeKind{domain.KindSampler, domain.KindImageGenerator}, kinds)

	assert.Equal(t, map[string]bool{"visual": true, "text": true},
		rt.Active(&domain.RouteDecision{Selected: []domain.NodeKind{domain.KindSampler, domain.KindImageGenerator}}))
}
