package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// OrchestratorSettings configure the orchestrator.
type OrchestratorSettings struct {
	ToolSelectionStrategy string `mapstructure:"toolSelectionStrategy"`
	MaxTools              int    `mapstructure:"maxTools"`
}

// Orchestrator is the router: it decides which downstream branches run.
type Orchestrator struct {
	Deps
}

// OrchestratorDecision is the JSON the model is asked to produce.
type OrchestratorDecision struct {
	ToolsToExecute []string `json:"tools_to_execute"`
	ImagePrompt    string   `json:"image_prompt,omitempty"`
	ImageType      string   `json:"image_type,omitempty"`
	Reasoning      string   `json:"reasoning"`
}

const orchestratorPrompt = `You are a Tool Orchestrator Agent. You have access to semantic search results from the knowledge base.

Available tools: %s

Tool Selection Strategy: %s
Maximum Tools to Use: %d

Only use tools when they are necessary. Default to using NO tools if the search results already provide sufficient context.
- image_generator: ONLY if the user explicitly asks for an image, diagram, or visual.
- sampler: when the question needs drafted text answers.

Output a JSON object with:
{
  "tools_to_execute": [],
  "image_prompt": "detailed prompt for image generation (only if image_generator selected)",
  "image_type": "diagram" | "photo" | "artistic" | "cartoon" | "illustration",
  "reasoning": "brief explanation"
}`

// Execute implements ports.Agent.
func (a *Orchestrator) Execute(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
	s := OrchestratorSettings{ToolSelectionStrategy: "balanced", MaxTools: 3}
	if err := decode(req.Settings, &s); err != nil {
		return nil, err
	}

	available := a.available(req.Downstream)
	tools := "none"
	if len(available) > 0 {
		names := make([]string, len(available))
		for i, k := range available {
			names[i] = string(k)
		}
		tools = strings.Join(names, ", ")
	}

	contextText := "No relevant documents found in knowledge base."
	if snippets := req.Context.Snippets(); len(snippets) > 0 {
		lines := make([]string, 0, 3)
		for i, sn := range snippets {
			if i == 3 {
				break
			}
			lines = append(lines, fmt.Sprintf("[%d] %s", i+1, truncate(sn, 200)))
		}
		contextText = strings.Join(lines, "\n")
	}

	model := a.model(req, "small")
	raw, err := a.chat(ctx, model, 0.3, 300,
		fmt.Sprintf(orchestratorPrompt, tools, s.ToolSelectionStrategy, s.MaxTools),
		fmt.Sprintf("User Question: %s\n\nSemantic Search Results:\n%s\n\nDecide which tools to execute (if any).", req.Message, contextText))
	if err != nil {
		return nil, err
	}

	decision, reason := parseDecision(raw, available)
	selected := filterTools(decision.ToolsToExecute, available, s.MaxTools)
	if decision.ImagePrompt == "" {
		decision.ImagePrompt = req.Message
	}
	if decision.ImageType == "" {
		decision.ImageType = "photo"
	}
	decision.ToolsToExecute = selected
	if decision.Reasoning == "" {
		decision.Reasoning = reason
	}

	kinds := make([]domain.NodeKind, len(selected))
	for i, t := range selected {
		kinds[i] = domain.NodeKind(t)
	}
	content := "Decided to use: no additional tools"
	if len(selected) > 0 {
		content = "Decided to use: " + strings.Join(selected, ", ")
	}

	return &domain.AgentResult{
		Agent:   string(domain.KindOrchestrator),
		Model:   model,
		Action:  "orchestrate",
		Content: content,
		Success: true,
		Metadata: map[string]any{
			"tools_to_execute":        selected,
			"available_tools":         tools,
			"reasoning":               decision.Reasoning,
			"image_prompt":            decision.ImagePrompt,
			"image_type":              decision.ImageType,
			"tool_selection_strategy": s.ToolSelectionStrategy,
			"max_tools":               s.MaxTools,
		},
		ContextUpdates: map[string]any{
			KeyToolsToExecute:      selected,
			domain.KeyOrchestrator: decision,
		},
		Route: &domain.RouteDecision{Selected: kinds, Reason: reason},
	}, nil
}

func (a *Orchestrator) available(downstream []domain.Node) []domain.NodeKind {
	if a.Branches != nil {
		return a.Branches(downstream)
	}
	var out []domain.NodeKind
	for _, n := range downstream {
		if n.Kind == domain.KindImageGenerator {
			return append(out, n.Kind)
		}
	}
	return out
}

// parseDecision reads the first JSON object in raw. When none parses it
// falls back to the tool names mentioned in the text.
func parseDecision(raw string, available []domain.NodeKind) (OrchestratorDecision, string) {
	var d OrchestratorDecision
	raw = stripFence(raw)
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &d); err == nil {
			return d, "model decision"
		}
	}

	lower := strings.ToLower(raw)
	for _, k := range available {
		if strings.Contains(lower, string(k)) {
			d.ToolsToExecute = append(d.ToolsToExecute, string(k))
		}
	}
	return d, "parsed from text"
}

func filterTools(tools []string, available []domain.NodeKind, max int) []string {
	allowed := make(map[string]bool, len(available))
	for _, k := range available {
		allowed[string(k)] = true
	}
	out := []string{}
	seen := make(map[string]bool)
	for _, t := range tools {
		t = strings.TrimSpace(strings.ToLower(t))
		if !allowed[t] || seen[t] {
			continue
		}
		if max > 0 && len(out) >= max {
			break
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
