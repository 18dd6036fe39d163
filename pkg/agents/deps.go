package agents

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/llm"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// Deps are the collaborators shared by the built-in agents.
type Deps struct {
	LLM       llm.Client
	Models    llm.Models
	Retriever ports.Retriever
	Images    llm.ImageGenerator
	// Branches returns the routable kinds among downstream nodes. The
	// orchestrator offers these as tools.
	Branches func(nodes []domain.Node) []domain.NodeKind
	Logger   *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (d Deps) models() llm.Models {
	if d.Models == (llm.Models{}) {
		return llm.DefaultModels()
	}
	return d.Models
}

// model resolves the per-call model: request override, else the tier.
func (d Deps) model(req ports.AgentRequest, tier string) string {
	return d.models().Resolve(req.Model, tier)
}

// tier ignores overrides.
func (d Deps) tier(name string) string {
	return d.models().Resolve(name, name)
}

func (d Deps) chat(ctx context.Context, model string, temperature float32, maxTokens int, system, user string) (string, error) {
	if d.LLM == nil {
		return "", fmt.Errorf("no llm client configured")
	}
	msgs := make([]llm.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, llm.System(system))
	}
	msgs = append(msgs, llm.User(user))
	out, err := d.LLM.Chat(ctx, llm.ChatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// decode fills out from node settings. Unknown keys are ignored and
// strings such as "5" are accepted for numbers.
func decode(settings map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(settings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// contentOf returns the first non-blank text found under keys, then the
// joined snippets, then fallback.
func contentOf(c *domain.ExecutionContext, fallback string, keys ...string) (string, string) {
	for _, k := range keys {
		if v := c.String(k); strings.TrimSpace(v) != "" {
			return v, k
		}
	}
	if s := c.Snippets(); len(s) > 0 {
		return strings.Join(s, "\n\n"), domain.KeySnippets
	}
	return fallback, domain.KeyUserMessage
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
