package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// SummarizationSettings configure the summarization agent.
type SummarizationSettings struct {
	MaxWords int `mapstructure:"maxWords"`
}

// Summarization condenses the current content.
type Summarization struct {
	Deps
}

const summarizationPrompt = `You are a Summarization Agent. Create a concise summary of the provided content.

REQUIREMENTS:
- Maximum words: %d
- Preserve the most important information
- Extract key points and main ideas
- Do not add information not in the original
- Structure the summary logically`

// Execute implements ports.Agent.
func (a *Summarization) Execute(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
	s := SummarizationSettings{MaxWords: 100}
	if err := decode(req.Settings, &s); err != nil {
		return nil, err
	}

	model := a.model(req, "small")
	content, source := contentOf(req.Context, req.Message, domain.KeyInputContent, domain.KeyFinalAnswer)
	if strings.TrimSpace(content) == "" {
		return &domain.AgentResult{
			Agent:    string(domain.KindSummarization),
			Model:    model,
			Action:   "summarize",
			Content:  "No content available to summarize.",
			Success:  false,
			Metadata: map[string]any{"error": "No input content"},
		}, nil
	}

	summary, err := a.chat(ctx, model, 0.3, max(200, 2*s.MaxWords),
		fmt.Sprintf(summarizationPrompt, s.MaxWords),
		fmt.Sprintf("Original Query: %s\n\nContent to Summarize:\n%s\n\nCreate a summary in approximately %d words or less.", req.Message, content, s.MaxWords))
	if err != nil {
		return nil, err
	}

	return &domain.AgentResult{
		Agent:   string(domain.KindSummarization),
		Model:   model,
		Action:  "summarize",
		Content: summary,
		Success: true,
		Metadata: map[string]any{
			"max_words":       s.MaxWords,
			"source":          source,
			"original_length": len(strings.Fields(content)),
			"summary_length":  len(strings.Fields(summary)),
		},
		ContextUpdates: map[string]any{
			KeySummary:             summary,
			domain.KeyInputContent: summary,
			domain.KeyFinalAnswer:  summary,
		},
	}, nil
}
