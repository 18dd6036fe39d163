package runtime

import (
	"github.com/aretw0/lattice/pkg/domain"
)

// Schedule linearizes g with Kahn's algorithm. Zero in-degree nodes start the
// queue in declaration order and newly freed nodes are enqueued in edge order,
// so the result is deterministic. Nodes left over form at least one cycle and
// are reported as *domain.GraphCycleError.
func Schedule(g *Graph) ([]string, error) {
	inDegree := make(map[string]int, len(g.ids))
	queue := make([]string, 0, len(g.ids))
	for _, id := range g.ids {
		inDegree[id] = g.InDegree(id)
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g.ids))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, next := range g.succ[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) < len(g.ids) {
		var leftover []string
		for _, id := range g.ids {
			if inDegree[id] > 0 {
				leftover = append(leftover, id)
			}
		}
		return nil, &domain.GraphCycleError{Nodes: leftover}
	}
	return order, nil
}
