package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// run is the mutable state of one kernel run.
type run struct {
	id      string
	plan    *Plan
	request domain.ExecuteRequest
	ctx     *domain.ExecutionContext
	states  domain.StateTable
	steps   []domain.StepRecord
}

// Executor runs a single node and folds its result into the run.
type Executor struct {
	agents  ports.AgentResolver
	routing RoutingTable
	now     func() time.Time
}

// NewExecutor creates an executor over an agent resolver.
func NewExecutor(agents ports.AgentResolver, routing RoutingTable) *Executor {
	return &Executor{agents: agents, routing: routing, now: time.Now}
}

// Execute runs node, merges its context updates, records the step and marks
// the node Executed. Only a failing agent returns an error.
func (x *Executor) Execute(ctx context.Context, r *run, node domain.Node) (domain.StepRecord, error) {
	var step domain.StepRecord
	switch {
	case node.Kind.IsInput():
		step = x.input(r, node)
	case node.Kind.IsOutput():
		step = domain.StepRecord{
			NodeID:  node.ID,
			Agent:   string(node.Kind),
			Model:   domain.ModelNone,
			Action:  "output",
			Content: r.ctx.ResolveAnswer(),
			Success: true,
		}
	default:
		var err error
		step, err = x.agent(ctx, r, node)
		if err != nil {
			return domain.StepRecord{}, err
		}
	}

	r.states.Resolve(node.ID, domain.StateExecuted)
	r.steps = append(r.steps, step)
	return step, nil
}

func (x *Executor) input(r *run, node domain.Node) domain.StepRecord {
	content := r.ctx.Message()
	if node.Payload != "" {
		content = node.Payload
		switch node.Kind {
		case domain.KindUpload, domain.KindSpreadsheet:
			r.ctx.Merge(map[string]any{domain.KeyUploadedFile: node.Payload})
		case domain.KindPrompt:
			if r.ctx.Message() == "" {
				r.ctx.Merge(map[string]any{domain.KeyUserMessage: node.Payload})
			}
		}
	}
	return domain.StepRecord{
		NodeID:  node.ID,
		Agent:   string(node.Kind),
		Model:   domain.ModelNone,
		Action:  "input",
		Content: content,
		Success: true,
	}
}

func (x *Executor) agent(ctx context.Context, r *run, node domain.Node) (domain.StepRecord, error) {
	impl, ok := x.agents.Lookup(node.Kind)
	if !ok {
		return domain.StepRecord{
			NodeID:  node.ID,
			Agent:   string(node.Kind),
			Model:   domain.ModelNone,
			Action:  "skip",
			Content: "Skipped",
			Skipped: true,
		}, nil
	}

	req := ports.AgentRequest{
		Message:       r.ctx.Message(),
		Context:       r.ctx,
		Settings:      node.Settings,
		Model:         modelFor(node, r.request),
		Node:          node,
		Downstream:    r.plan.Graph.Descendants(node.ID),
		Reachable:     r.plan.Order,
		KnowledgeBase: r.request.KnowledgeBase,
	}

	started := x.now()
	result, err := impl.Execute(ctx, req)
	if err != nil {
		return domain.StepRecord{}, &domain.AgentExecutionError{NodeID: node.ID, Kind: node.Kind, Err: err}
	}
	if result == nil {
		return domain.StepRecord{}, &domain.AgentExecutionError{NodeID: node.ID, Kind: node.Kind, Err: fmt.Errorf("agent returned no result")}
	}

	r.ctx.Merge(result.ContextUpdates)
	if x.routing.IsRouter(node.Kind) {
		d := decisionOf(result)
		d.Router = node.ID
		r.ctx.RecordDecision(d)
	}

	step := domain.NewStepRecord(node.ID, result)
	step.DurationMs = float64(x.now().Sub(started).Microseconds()) / 1000
	return step, nil
}

func modelFor(node domain.Node, req domain.ExecuteRequest) string {
	if m, ok := node.Settings["model"].(string); ok && m != "" {
		return m
	}
	return req.Model
}

// decisionOf returns the structured decision of a router. Without one it
// falls back to the tools_to_execute list, and finally to an empty decision
// which keeps only the default branches.
func decisionOf(result *domain.AgentResult) *domain.RouteDecision {
	if result.Route != nil {
		d := *result.Route
		d.Selected = append([]domain.NodeKind(nil), result.Route.Selected...)
		return &d
	}

	d := &domain.RouteDecision{Reason: "no decision"}
	switch tools := result.ContextUpdates["tools_to_execute"].(type) {
	case []string:
		for _, t := range tools {
			d.Selected = append(d.Selected, domain.NodeKind(t))
		}
		d.Reason = "tools_to_execute"
	case []any:
		for _, t := range tools {
			if s, ok := t.(string); ok {
				d.Selected = append(d.Selected, domain.NodeKind(s))
			}
		}
		d.Reason = "tools_to_execute"
	case []domain.NodeKind:
		d.Selected = append(d.Selected, tools...)
		d.Reason = "tools_to_execute"
	}
	return d
}
