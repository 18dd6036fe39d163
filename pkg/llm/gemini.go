package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiModels are the defaults for the Gemini backend.
func GeminiModels() Models {
	return Models{
		Small:     "gemini-2.0-flash",
		Large:     "gemini-2.5-pro",
		Embedding: "text-embedding-004",
		Image:     "imagen-3.0-generate-002",
	}
}

// Gemini implements Client, Embedder and ImageGenerator with the genai SDK.
type Gemini struct {
	client *genai.Client
	models Models
}

// NewGemini creates a Gemini provider using the Gemini API backend.
func NewGemini(ctx context.Context, apiKey string, models Models) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if models == (Models{}) {
		models = GeminiModels()
	}
	return &Gemini{client: client, models: models}, nil
}

// Chat implements Client. System messages become the system instruction.
func (g *Gemini) Chat(ctx context.Context, req ChatRequest) (string, error) {
	var system []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.geminiModel(req.Model), contents, config)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Embed implements Embedder.
func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := g.client.Models.EmbedContent(ctx, g.models.Embedding, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

// GenerateImage implements ImageGenerator and returns a data URL.
func (g *Gemini) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	prompt := req.Prompt
	if suffix, ok := imageStyles[req.Style]; ok {
		prompt = fmt.Sprintf("%s. Style: %s", prompt, suffix)
	}
	resp, err := g.client.Models.GenerateImages(ctx, g.models.Image, prompt, &genai.GenerateImagesConfig{NumberOfImages: 1})
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, ErrEmptyResponse
	}
	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return &Image{
		URL:      fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img.ImageBytes)),
		Size:     req.Size,
		Provider: "gemini",
	}, nil
}

// geminiModel maps tier aliases; OpenAI model names sent by the editor fall
// back to the small Gemini model.
func (g *Gemini) geminiModel(name string) string {
	m := g.models.Resolve(name, "small")
	if strings.HasPrefix(m, "gpt-") {
		return g.models.Small
	}
	return m
}
