package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// SynthesisSettings configure the synthesis agent.
type SynthesisSettings struct {
	MaxWords int `mapstructure:"maxWords"`
}

// Synthesis writes the final answer from candidates, snippets and tool outputs.
type Synthesis struct {
	Deps
}

const synthesisPrompt = `Synthesize a clear, informative answer from the available context, candidates, and tool outputs.

%s

INSTRUCTIONS:
- Create a clear, well-structured answer that directly addresses the question
- Use information from the candidates and sources
- Maximum words: %d
- Include key facts, numbers, and details that directly answer the question
- Structure your answer with clear, distinct paragraphs
- Cite sources using [1], [2], [3] notation inline
- If an image was generated, mention "See the image/diagram below"
%s
Your answer should clearly and directly address the user's question.`

const synthesisImageOnlyPrompt = `You are responding to an image generation request.

%s

Write a brief response (1-2 sentences) acknowledging the image was created.
Reference what was generated. Do NOT make up details not in the image prompt.`

// Execute implements ports.Agent.
func (a *Synthesis) Execute(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
	s := SynthesisSettings{MaxWords: 500}
	if err := decode(req.Settings, &s); err != nil {
		return nil, err
	}

	c := req.Context
	images := c.ToolOutputs(domain.ToolImages)
	calcs := c.ToolOutputs(domain.ToolCalculations)
	web := c.ToolOutputs(domain.ToolWebResults)
	docs := c.Docs()

	var tools []string
	if len(images) > 0 {
		tools = append(tools, fmt.Sprintf("IMAGE GENERATED: '%s' - The image will be displayed below your response.", imagePrompt(images[0])))
	}
	for _, calc := range calcs {
		tools = append(tools, "CALCULATION: "+fieldOf(calc, "summary"))
	}
	if len(web) > 0 {
		tools = append(tools, fmt.Sprintf("WEB SEARCH: Found %d results", len(web)))
	}
	toolContext := strings.Join(tools, "\n")

	var system string
	if len(images) > 0 && len(docs) == 0 && len(web) == 0 {
		system = fmt.Sprintf(synthesisImageOnlyPrompt, toolContext)
	} else {
		sources := ""
		if len(docs) > 0 {
			var b strings.Builder
			b.WriteString("\nAvailable Sources (use [1], [2], etc. to cite):\n")
			for i, d := range docs {
				title := fieldOf(d, "title")
				if title == "" {
					title = "Unknown"
				}
				fmt.Fprintf(&b, "[%d] %s\n", i+1, title)
			}
			sources = b.String()
		}
		system = fmt.Sprintf(synthesisPrompt, toolContext, s.MaxWords, sources)
	}

	snippetText := "No document context"
	if snippets := c.Snippets(); len(snippets) > 0 {
		parts := make([]string, len(snippets))
		for i, sn := range snippets {
			parts[i] = fmt.Sprintf("[Source %d]\n%s", i+1, sn)
		}
		snippetText = strings.Join(parts, "\n\n")
	}
	candidates := c.List(domain.KeyCandidates)
	candidateText := "No candidates"
	if len(candidates) > 0 {
		parts := make([]string, len(candidates))
		for i, cand := range candidates {
			parts[i] = fmt.Sprintf("Candidate %d: %v", i+1, cand)
		}
		candidateText = strings.Join(parts, "\n\n")
	}
	if guidance := c.String(KeySupervisorGuidance); guidance != "" {
		system += "\n\nSupervisor guidance:\n" + guidance
	}

	model := a.model(req, "large")
	answer, err := a.chat(ctx, model, 0.3, max(800, 2*s.MaxWords), system,
		fmt.Sprintf("Question: %s\n\nRetrieved Documents and Context:\n%s\n\nCandidate Answers (synthesize the best parts):\n%s\n\nCreate a clear, concise answer that combines the best insights from the sources.",
			req.Message, snippetText, candidateText))
	if err != nil {
		return nil, err
	}

	return &domain.AgentResult{
		Agent:   string(domain.KindSynthesis),
		Model:   model,
		Action:  "synthesize",
		Content: answer,
		Success: true,
		Metadata: map[string]any{
			"max_words":      s.MaxWords,
			"has_images":     len(images) > 0,
			"has_docs":       len(docs) > 0,
			"num_candidates": len(candidates),
		},
		ContextUpdates: map[string]any{
			domain.KeyFinalAnswer:  answer,
			domain.KeyInputContent: answer,
		},
	}, nil
}

// fieldOf reads key from a map-shaped context item.
func fieldOf(item any, key string) string {
	m, ok := item.(map[string]any)
	if !ok {
		if s, ok := item.(string); ok && key == "summary" {
			return s
		}
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func imagePrompt(item any) string {
	if img, ok := item.(domain.ImageOutput); ok {
		return img.Prompt
	}
	return fieldOf(item, "prompt")
}
