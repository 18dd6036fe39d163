package runtime

import (
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
)

// Verdict is the pruner's decision for one node.
type Verdict int

const (
	VerdictExecute Verdict = iota
	VerdictExclude
	VerdictSkip
)

func (v Verdict) String() string {
	switch v {
	case VerdictExclude:
		return "exclude"
	case VerdictSkip:
		return "skip"
	default:
		return "execute"
	}
}

// BranchGroup is a set of kinds that form one alternative path.
// Default groups stay active when a router selects no group at all.
type BranchGroup struct {
	Name    string
	Kinds   []domain.NodeKind
	Default bool

	// Suppress excludes the group's nodes from the run data alone, whether
	// or not a router sits upstream.
	Suppress *Suppression
}

// Suppression is a data-driven exclusion rule. Clear lists context keys
// reset to an empty list when the rule fires.
type Suppression struct {
	When   func(c *domain.ExecutionContext) bool
	Reason string
	Clear  []string
}

// HasImages reports whether an image was already produced in the run.
func HasImages(c *domain.ExecutionContext) bool {
	return len(c.ToolOutputs(domain.ToolImages)) > 0
}

// RoutingTable partitions kinds into branch groups; kinds outside every
// group are neutral and always run.
type RoutingTable struct {
	Routers []domain.NodeKind
	Groups  []BranchGroup
}

// DefaultRoutingTable routes image generation against text sampling,
// decided by the orchestrator.
func DefaultRoutingTable() RoutingTable {
	return RoutingTable{
		Routers: []domain.NodeKind{domain.KindOrchestrator},
		Groups: []BranchGroup{
			{Name: "visual", Kinds: []domain.NodeKind{domain.KindImageGenerator}},
			{
				Name:    "text",
				Kinds:   []domain.NodeKind{domain.KindSampler},
				Default: true,
				Suppress: &Suppression{
					When:   HasImages,
					Reason: "Excluded (image generation request)",
					Clear:  []string{domain.KeyCandidates},
				},
			},
		},
	}
}

// IsRouter reports whether kind produces route decisions.
func (rt RoutingTable) IsRouter(kind domain.NodeKind) bool {
	for _, k := range rt.Routers {
		if k == kind {
			return true
		}
	}
	return false
}

// GroupOf returns the branch group of kind. Neutral kinds return false.
func (rt RoutingTable) GroupOf(kind domain.NodeKind) (BranchGroup, bool) {
	for _, g := range rt.Groups {
		for _, k := range g.Kinds {
			if k == kind {
				return g, true
			}
		}
	}
	return BranchGroup{}, false
}

// Active returns the group names a decision activates.
func (rt RoutingTable) Active(d *domain.RouteDecision) map[string]bool {
	active := make(map[string]bool)
	for _, kind := range d.Selected {
		if g, ok := rt.GroupOf(kind); ok {
			active[g.Name] = true
		}
	}
	if len(active) == 0 {
		for _, g := range rt.Groups {
			if g.Default {
				active[g.Name] = true
			}
		}
	}
	return active
}

// BranchKinds returns the non-neutral kinds among nodes, without duplicates.
func (rt RoutingTable) BranchKinds(nodes []domain.Node) []domain.NodeKind {
	seen := make(map[domain.NodeKind]bool)
	var out []domain.NodeKind
	for _, n := range nodes {
		if _, ok := rt.GroupOf(n.Kind); ok && !seen[n.Kind] {
			seen[n.Kind] = true
			out = append(out, n.Kind)
		}
	}
	return out
}

// Pruner decides whether a node executes, is excluded or is skipped.
type Pruner struct {
	graph   *Graph
	routing RoutingTable
}

// NewPruner binds a pruner to the reachable graph of a plan.
func NewPruner(g *Graph, routing RoutingTable) *Pruner {
	return &Pruner{graph: g, routing: routing}
}

// Evaluate applies, in order: missing-dependency skip, transitive exclusion
// and router exclusion. Router exclusion takes precedence over the
// transitive rule. The returned string is the human-readable reason.
func (p *Pruner) Evaluate(id string, states domain.StateTable, decisions map[string]*domain.RouteDecision) (Verdict, string) {
	deps := p.graph.Dependencies(id)
	for _, dep := range deps {
		if !states.Get(dep).Resolved() {
			return VerdictSkip, fmt.Sprintf("missing dependency %s", dep)
		}
	}

	if router, excluded := p.routerExcludes(id, states, decisions); excluded {
		return VerdictExclude, fmt.Sprintf("Excluded (not selected by %s)", router)
	}

	if p.allExcluded(id, states) {
		return VerdictExclude, "Excluded (all dependencies excluded)"
	}

	return VerdictExecute, ""
}

// Suppressed returns the suppression rule that excludes id given the current
// context, if any. It is consulted only for nodes Evaluate would execute.
func (p *Pruner) Suppressed(id string, c *domain.ExecutionContext) (*Suppression, bool) {
	node, ok := p.graph.Node(id)
	if !ok {
		return nil, false
	}
	group, ok := p.routing.GroupOf(node.Kind)
	if !ok || group.Suppress == nil || group.Suppress.When == nil {
		return nil, false
	}
	if !group.Suppress.When(c) {
		return nil, false
	}
	return group.Suppress, true
}

// ExcludeTransitively applies the transitive rule to Pending nodes until
// nothing changes and returns how many nodes it excluded.
func (p *Pruner) ExcludeTransitively(states domain.StateTable) int {
	changed := 0
	for {
		round := 0
		for _, id := range p.graph.ids {
			if states.Get(id) != domain.StatePending {
				continue
			}
			if p.allExcluded(id, states) {
				states.Resolve(id, domain.StateExcluded)
				round++
			}
		}
		if round == 0 {
			return changed
		}
		changed += round
	}
}

func (p *Pruner) allExcluded(id string, states domain.StateTable) bool {
	deps := p.graph.Dependencies(id)
	if len(deps) == 0 {
		return false
	}
	for _, dep := range deps {
		if states.Get(dep) != domain.StateExcluded {
			return false
		}
	}
	return true
}

func (p *Pruner) routerExcludes(id string, states domain.StateTable, decisions map[string]*domain.RouteDecision) (string, bool) {
	node, ok := p.graph.Node(id)
	if !ok {
		return "", false
	}
	group, ok := p.routing.GroupOf(node.Kind)
	if !ok {
		return "", false
	}

	// Decisions are checked in schedule-independent declaration order.
	for _, routerID := range p.graph.ids {
		d, ok := decisions[routerID]
		if !ok || states.Get(routerID) != domain.StateExecuted {
			continue
		}
		if !p.graph.IsDescendant(routerID, id) {
			continue
		}
		if !p.routing.Active(d)[group.Name] {
			return routerID, true
		}
	}
	return "", false
}
