package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/domain"
)

// GraphOverlay carries the outcome of a run to paint on the graph.
type GraphOverlay struct {
	States map[string]domain.ExecutionState
}

// GenerateMermaid produces a Mermaid flowchart for def. Shapes follow the
// node role:
//   - Input (prompt, upload, spreadsheet): [/Parallelogram/]
//   - Router: {Rhombus}
//   - Response: ((Circle))
//   - Agent: [Rectangle]
//
// Edges from a router into one of its branch groups are dotted and labelled
// with the group name.
func GenerateMermaid(def domain.WorkflowGraph, routing runtime.RoutingTable, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	kinds := make(map[string]domain.NodeKind, len(def.Nodes))
	for _, node := range def.Nodes {
		kind := node.Kind
		if kind == "" {
			kind = domain.InferKind(node.ID)
		}
		kinds[node.ID] = kind

		opener, closer := "[", "]"
		switch {
		case kind.IsInput():
			opener, closer = "[/", "/]"
		case kind.IsOutput():
			opener, closer = "((", "))"
		case routing.IsRouter(kind):
			opener, closer = "{", "}"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s<br/><small>%s</small>\"%s\n", sanitizeMermaidID(node.ID), opener, node.ID, kind, closer)
	}

	for _, e := range def.Edges {
		arrow := "-->"
		if routing.IsRouter(kinds[e.Source]) {
			if group, ok := routing.GroupOf(kinds[e.Target]); ok {
				arrow = fmt.Sprintf("-. %s .->", group.Name)
			}
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.Source), arrow, sanitizeMermaidID(e.Target))
	}

	if overlay != nil && len(overlay.States) > 0 {
		sb.WriteString("\n    %% Run outcome\n")
		// Black text keeps labels readable on both themes.
		sb.WriteString("    classDef executed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef excluded fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4 2,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#fff3e0,stroke:#ef6c00,color:#000;\n")
		for _, node := range def.Nodes {
			switch s := overlay.States[node.ID]; s {
			case domain.StateExecuted, domain.StateExcluded, domain.StateSkipped:
				fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(node.ID), s)
			}
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
