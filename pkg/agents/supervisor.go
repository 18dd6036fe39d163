package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// SupervisorSettings configure the supervisor.
type SupervisorSettings struct {
	PlanningStyle     string `mapstructure:"planningStyle"`
	OptimizationLevel string `mapstructure:"optimizationLevel"`
	SupervisorPrompt  string `mapstructure:"supervisorPrompt"`
	AutoRAG           bool   `mapstructure:"autoRAG"`
}

// Supervisor analyses the query against the downstream nodes and writes
// guidance for them. With AutoRAG it searches the knowledge base first.
type Supervisor struct {
	Deps
}

const supervisorPrompt = `You are a Supervisor Agent that analyzes queries and plans workflow execution.

WORKFLOW STRUCTURE (nodes in this workflow):
%s

Planning style: %s | Optimization: %s
%s
Analyze the query and provide guidance for downstream nodes:
1. UNDERSTAND THE QUERY: What is the user asking for?
2. IDENTIFY THE GOAL: Based on the workflow nodes, what is the end goal?
3. PROVIDE GUIDANCE: Give specific instructions for the downstream agents.

OUTPUT FORMAT:
QUERY ANALYSIS: [What the user wants]
WORKFLOW PATH: [Which nodes should be activated based on the query]
GUIDANCE: [Specific instructions for downstream agents]`

const documentAnalysis = `IMPORTANT: A document has been uploaded. Read all of it, identify its type,
list the key data points and entities, and give specific extraction instructions.

`

// Execute implements ports.Agent.
func (a *Supervisor) Execute(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
	s := SupervisorSettings{PlanningStyle: "optimized", OptimizationLevel: "basic"}
	if err := decode(req.Settings, &s); err != nil {
		return nil, err
	}
	log := a.logger().With("agent", domain.KindSupervisor, "node", req.Node.ID)

	updates := map[string]any{}
	var ragContext string
	var ragCount int
	if s.AutoRAG && a.Retriever != nil {
		results, err := a.Retriever.SemanticSearch(ctx, ports.SearchQuery{
			Query:         req.Message,
			TopK:          5,
			Rerank:        true,
			KnowledgeBase: req.KnowledgeBase,
		})
		if err != nil {
			log.Warn("Auto-RAG search failed", "err", err)
		} else if len(results) > 0 {
			ragCount = len(results)
			parts := make([]string, 0, len(results))
			snippets := make([]string, 0, len(results))
			for _, r := range results {
				parts = append(parts, fmt.Sprintf("[%s] (relevance: %.1f%%)\n%s", r.Title, r.Score, truncate(r.Snippet, 1000)))
				snippets = append(snippets, fmt.Sprintf("[%s] %s", r.Title, truncate(r.Snippet, 500)))
			}
			ragContext = "\n\n---\nRELEVANT KNOWLEDGE BASE CONTEXT:\n" + strings.Join(parts, "\n\n")
			updates[domain.KeySemantic] = results
			updates[domain.KeySnippets] = snippets
		}
	}

	nodes := "- (no specific nodes detected)"
	if len(req.Downstream) > 0 {
		lines := make([]string, 0, len(req.Downstream))
		for _, n := range req.Downstream {
			lines = append(lines, fmt.Sprintf("- %s (%s)", n.ID, n.Kind))
		}
		nodes = strings.Join(lines, "\n")
	}
	extra := ""
	if s.SupervisorPrompt != "" {
		extra = "\nAdditional instructions from user:\n" + s.SupervisorPrompt + "\n"
	}

	hasUpload := req.Context.String(domain.KeyUploadedFile) != ""
	message := req.Message
	model := a.model(req, "small")
	maxTokens := 600
	if hasUpload {
		message = documentAnalysis + message + "\n\n" + req.Context.String(domain.KeyUploadedFile)
		model = a.tier("large")
		maxTokens = 1500
	}

	plan, err := a.chat(ctx, model, 0.2, maxTokens,
		fmt.Sprintf(supervisorPrompt, nodes, s.PlanningStyle, s.OptimizationLevel, extra),
		message+ragContext)
	if err != nil {
		return nil, err
	}
	log.Debug("Supervisor plan ready", "chars", len(plan), "auto_rag_results", ragCount)

	updates[domain.KeySupervisorPlan] = plan
	updates[KeySupervisorGuidance] = plan
	return &domain.AgentResult{
		Agent:   string(domain.KindSupervisor),
		Model:   model,
		Action:  "analyze_and_plan",
		Content: plan,
		Success: true,
		Metadata: map[string]any{
			"planning_style":     s.PlanningStyle,
			"optimization_level": s.OptimizationLevel,
			"analyzed_document":  hasUpload,
			"auto_rag":           s.AutoRAG,
			"auto_rag_results":   ragCount,
		},
		ContextUpdates: updates,
	}, nil
}
