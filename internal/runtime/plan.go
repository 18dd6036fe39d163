package runtime

import (
	"github.com/aretw0/lattice/pkg/domain"
)

// Plan is the fixed execution sequence computed before any node runs.
type Plan struct {
	// Graph is the reachable subgraph.
	Graph *Graph
	// Order is the topological order of Graph.
	Order []string
	// Dropped lists unreachable node ids.
	Dropped []string
	// Warnings holds the non-fatal validation errors.
	Warnings []error
}

// NewPlan validates def, drops unreachable nodes and schedules the rest.
// It fails with *domain.GraphCycleError or domain.ErrEmptyGraph.
func NewPlan(def domain.WorkflowGraph) (*Plan, error) {
	g, warnings := BuildGraph(def)
	reachable, dropped := Prune(g)
	if reachable.Len() == 0 {
		return nil, domain.ErrEmptyGraph
	}

	order, err := Schedule(reachable)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Graph:    reachable,
		Order:    order,
		Dropped:  dropped,
		Warnings: warnings,
	}, nil
}
