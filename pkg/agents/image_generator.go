package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/llm"
	"github.com/aretw0/lattice/pkg/ports"
)

// ImageGeneratorSettings configure the image generator.
type ImageGeneratorSettings struct {
	ImageType string `mapstructure:"imageType"`
	Size      string `mapstructure:"size"`
}

// ImageGenerator renders one image. A provider failure is reported as an
// unsuccessful result with a placeholder, never as a run error.
type ImageGenerator struct {
	Deps
}

const imageFailedURL = "https://placehold.co/512x512/1a1a2e/ff6b6b?text=Generation+Failed"

// Execute implements ports.Agent.
func (a *ImageGenerator) Execute(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
	s := ImageGeneratorSettings{ImageType: "photo", Size: "1024x1024"}
	if err := decode(req.Settings, &s); err != nil {
		return nil, err
	}

	prompt, style := req.Message, s.ImageType
	if p, st := orchestratorImage(req.Context); p != "" {
		prompt = p
		if st != "" {
			style = st
		}
	}

	var (
		img *llm.Image
		err error
	)
	if a.Images == nil {
		err = errors.New("no image provider configured")
	} else {
		img, err = a.Images.GenerateImage(ctx, llm.ImageRequest{Prompt: prompt, Style: style, Size: s.Size})
	}

	out := domain.ImageOutput{Prompt: prompt, Style: style}
	meta := map[string]any{"prompt": prompt, "style": style, "dimensions": s.Size}
	provider := "image"
	var content string
	if err != nil {
		a.logger().Warn("Image generation failed", "node", req.Node.ID, "err", err)
		out.URL = imageFailedURL
		meta["error"] = err.Error()
		content = fmt.Sprintf("Image generation failed: %v", err)
	} else {
		out.URL = img.URL
		if img.Provider != "" {
			provider = img.Provider
		}
		revised := img.RevisedPrompt
		if revised == "" {
			revised = prompt
		}
		content = "Generated image: " + revised
	}
	meta["url"] = out.URL
	meta["success"] = err == nil

	updates := map[string]any{domain.ToolImages: []domain.ImageOutput{out}}
	if err == nil {
		updates[domain.KeySnippets] = []string{"[IMAGE] Generated: " + prompt}
	}
	return &domain.AgentResult{
		Agent:          string(domain.KindImageGenerator),
		Model:          provider,
		Action:         "generate",
		Content:        content,
		Success:        err == nil,
		Metadata:       meta,
		ContextUpdates: updates,
	}, nil
}

// orchestratorImage reads the image prompt chosen by an upstream orchestrator.
func orchestratorImage(c *domain.ExecutionContext) (prompt, style string) {
	v, ok := c.Get(domain.KeyOrchestrator)
	if !ok {
		return "", ""
	}
	switch d := v.(type) {
	case OrchestratorDecision:
		return d.ImagePrompt, d.ImageType
	case *OrchestratorDecision:
		return d.ImagePrompt, d.ImageType
	case map[string]any:
		return fieldOf(d, "image_prompt"), fieldOf(d, "image_type")
	}
	return "", ""
}
