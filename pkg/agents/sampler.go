package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// SamplerSettings configure the sampler.
type SamplerSettings struct {
	NumResponses int     `mapstructure:"numResponses"`
	Temperature  float32 `mapstructure:"temperature"`
}

// Sampler drafts several diverse candidate answers.
type Sampler struct {
	Deps
}

const samplerPrompt = `Generate %d DIFFERENT candidate answers that explore different aspects and details of the prompt.

Each candidate should:
- Be comprehensive and detailed (4-6 sentences minimum)
- Include specific facts, numbers, and details from the context
- Stand alone as a helpful answer

Number each candidate as [1], [2], [3], etc.
Ground ALL information in the provided context.`

// Execute implements ports.Agent.
func (a *Sampler) Execute(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
	s := SamplerSettings{NumResponses: 5, Temperature: 0.9}
	if err := decode(req.Settings, &s); err != nil {
		return nil, err
	}
	if s.NumResponses <= 0 {
		s.NumResponses = 1
	}

	snippets := req.Context.Snippets()
	grounded := false
	for _, sn := range snippets {
		if !strings.HasPrefix(sn, "[IMAGE]") {
			grounded = true
			break
		}
	}
	n := s.NumResponses
	if !grounded && n > 2 {
		n = 2
	}

	contextText := "No context available"
	if len(snippets) > 0 {
		contextText = strings.Join(snippets, "\n- ")
	}

	model := a.model(req, "small")
	raw, err := a.chat(ctx, model, s.Temperature, 1200,
		fmt.Sprintf(samplerPrompt, n),
		fmt.Sprintf("Question: %s\n\nContext:\n- %s", req.Message, contextText))
	if err != nil {
		return nil, err
	}
	candidates := parseCandidates(raw, n)

	preview := make([]string, len(candidates))
	for i, c := range candidates {
		preview[i] = truncate(c, 100)
	}
	return &domain.AgentResult{
		Agent:   string(domain.KindSampler),
		Model:   model,
		Action:  "sample",
		Content: fmt.Sprintf("Generated %d candidates", len(candidates)),
		Success: true,
		Metadata: map[string]any{
			"num_candidates":     len(candidates),
			"candidates_preview": preview,
		},
		ContextUpdates: map[string]any{
			domain.KeyCandidates: candidates,
		},
	}, nil
}

var candidateMarker = regexp.MustCompile(`^\s*(?:\[(\d+)\]|(\d+)[.)])\s*`)

// parseCandidates splits numbered answers. Without markers the whole text is
// one candidate.
func parseCandidates(raw string, max int) []string {
	var out []string
	var current []string
	flush := func() {
		if text := strings.TrimSpace(strings.Join(current, " ")); text != "" {
			out = append(out, text)
		}
		current = nil
	}

	started := false
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if loc := candidateMarker.FindStringIndex(line); loc != nil {
			if started {
				flush()
			}
			started = true
			current = append(current, strings.TrimSpace(line[loc[1]:]))
			continue
		}
		if started && strings.TrimSpace(line) != "" {
			current = append(current, strings.TrimSpace(line))
		}
	}
	if started {
		flush()
	}

	if len(out) == 0 {
		return []string{strings.TrimSpace(raw)}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}
