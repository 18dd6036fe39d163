package runtime_test

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// agentTable is a minimal AgentResolver for kernel tests.
type agentTable map[domain.NodeKind]ports.Agent

func (t agentTable) Lookup(kind domain.NodeKind) (ports.Agent, bool) {
	a, ok := t[kind]
	return a, ok
}

// echoAgent contributes a snippet naming itself and records the call order.
func echoAgent(calls *[]string) ports.Agent {
	return ports.AgentFunc(func(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
		*calls = append(*calls, req.Node.ID)
		return &domain.AgentResult{
			Agent:   string(req.Node.Kind),
			Model:   "test-model",
			Action:  "echo",
			Content: req.Node.ID,
			Success: true,
			ContextUpdates: map[string]any{
				domain.KeySnippets: []string{req.Node.ID},
			},
		}, nil
	})
}

// routerAgent selects the given kinds.
func routerAgent(selected ...domain.NodeKind) ports.Agent {
	return ports.AgentFunc(func(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
		return &domain.AgentResult{
			Agent:   string(req.Node.Kind),
			Model:   "test-model",
			Action:  "orchestrate",
			Content: fmt.Sprintf("selected %v", selected),
			Success: true,
			Route:   &domain.RouteDecision{Selected: selected},
		}, nil
	})
}

func node(id string, kind domain.NodeKind) domain.Node {
	return domain.Node{ID: id, Kind: kind}
}

func edge(src, dst string) domain.Edge {
	return domain.Edge{Source: src, Target: dst}
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func stepIDs(steps []domain.StepRecord) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.NodeID
	}
	return out
}

func idsWithState(res *domain.RunResult, s domain.ExecutionState) []string {
	var out []string
	for _, id := range res.Order {
		if res.States[id] == s {
			out = append(out, id)
		}
	}
	return out
}
