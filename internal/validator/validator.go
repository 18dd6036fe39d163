// Package validator checks workflow graphs without running them.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Severity of an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding about a graph.
type Issue struct {
	Severity Severity `json:"severity"`
	NodeID   string   `json:"node_id,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.NodeID != "" {
		return fmt.Sprintf("%s: %s", i.NodeID, i.Message)
	}
	return i.Message
}

// Report is the outcome of Validate.
type Report struct {
	Order   []string `json:"order"`
	Dropped []string `json:"dropped,omitempty"`
	Issues  []Issue  `json:"issues"`
}

// Valid reports whether the graph would run.
func (r Report) Valid() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Err joins the error issues, or returns nil.
func (r Report) Err() error {
	var msgs []string
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			msgs = append(msgs, i.String())
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(msgs), strings.Join(msgs, "\n- "))
}

func (r *Report) add(sev Severity, nodeID, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: sev, NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
}

// Validate plans def the way the kernel would and reports what would go
// wrong. agents may be nil, in which case only the kind enumeration is
// checked.
func Validate(def domain.WorkflowGraph, agents ports.AgentResolver, routing runtime.RoutingTable) Report {
	report := Report{Issues: []Issue{}}

	plan, err := runtime.NewPlan(def)
	if err != nil {
		var cycle *domain.GraphCycleError
		switch {
		case errors.As(err, &cycle):
			report.add(SeverityError, "", "cycle through %s", strings.Join(cycle.Nodes, ", "))
		case errors.Is(err, domain.ErrEmptyGraph):
			report.add(SeverityError, "", "graph has no reachable nodes")
		default:
			report.add(SeverityError, "", "%v", err)
		}
		return report
	}

	report.Order = plan.Order
	report.Dropped = plan.Dropped
	for _, w := range plan.Warnings {
		var v *domain.GraphValidationError
		if errors.As(w, &v) {
			report.add(SeverityWarning, v.NodeID, "%s", w.Error())
			continue
		}
		report.add(SeverityWarning, "", "%s", w.Error())
	}
	for _, id := range plan.Dropped {
		report.add(SeverityWarning, id, "unreachable from any input, will not run")
	}

	var hasOutput bool
	for _, id := range plan.Order {
		n, _ := plan.Graph.Node(id)
		switch {
		case n.Kind.IsOutput():
			hasOutput = true
		case n.Kind.IsInput():
		case !n.Kind.IsKnown():
			report.add(SeverityWarning, id, "unknown kind %q, will be skipped", n.Kind)
		case agents != nil:
			if _, ok := agents.Lookup(n.Kind); !ok {
				report.add(SeverityWarning, id, "no agent registered for %q, will be skipped", n.Kind)
			}
		}

		if routing.IsRouter(n.Kind) && len(routing.BranchKinds(plan.Graph.Descendants(id))) == 0 {
			report.add(SeverityWarning, id, "router has no branch nodes downstream")
		}
	}
	if !hasOutput {
		report.add(SeverityWarning, "", "no response node; the answer is still returned in the done event")
	}
	return report
}
