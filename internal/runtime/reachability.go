package runtime

// Sources returns the entry points of g: input-tagged nodes and nodes with no
// incoming edge, in declaration order.
func Sources(g *Graph) []string {
	var out []string
	for _, id := range g.ids {
		if g.nodes[id].Kind.IsInput() || g.InDegree(id) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Reachable returns the BFS closure of Sources(g) over forward edges.
func Reachable(g *Graph) map[string]bool {
	return g.bfs(Sources(g), true)
}

// Prune returns the reachable subgraph and the ids that were dropped.
// Dropped nodes never reach the scheduler.
func Prune(g *Graph) (*Graph, []string) {
	reachable := Reachable(g)
	var dropped []string
	for _, id := range g.ids {
		if !reachable[id] {
			dropped = append(dropped, id)
		}
	}
	return g.subgraph(reachable), dropped
}
