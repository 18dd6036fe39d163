// Package llm holds the model collaborators used by agents and retrieval:
// chat completion, embeddings and image generation, plus the API key pool
// that rotates credentials when a provider rate-limits a key.
package llm

import (
	"context"
	"errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// ChatRequest is a single completion call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Client produces chat completions.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder turns texts into vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ImageRequest describes one image to generate.
type ImageRequest struct {
	Prompt string
	Style  string
	Size   string
}

// Image is a generated image. URL may be a data: URL.
type Image struct {
	URL           string `json:"url"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	Size          string `json:"size"`
	Provider      string `json:"provider"`
}

// ImageGenerator produces images from prompts.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*Image, error)
}

// Models names the model used for each tier.
type Models struct {
	Small     string `mapstructure:"small" json:"small"`
	Large     string `mapstructure:"large" json:"large"`
	Embedding string `mapstructure:"embedding" json:"embedding"`
	Image     string `mapstructure:"image" json:"image"`
}

// DefaultModels returns the OpenAI model names.
func DefaultModels() Models {
	return Models{
		Small:     "gpt-4o-mini",
		Large:     "gpt-4o",
		Embedding: "text-embedding-3-small",
		Image:     "dall-e-3",
	}
}

// Resolve maps the tier aliases "small" and "large" to model names and
// falls back to fallback when name is empty.
func (m Models) Resolve(name, fallback string) string {
	if name == "" {
		name = fallback
	}
	switch name {
	case "small":
		return m.Small
	case "large":
		return m.Large
	}
	return name
}

// Provider bundles the collaborators of one configured backend.
type Provider struct {
	Name     string
	Chat     Client
	Embedder Embedder
	Images   ImageGenerator
	Models   Models
}

var (
	// ErrRateLimited is returned when every key of a pool hit its quota.
	ErrRateLimited = errors.New("llm: rate limit exceeded on all keys")
	// ErrEmptyResponse is returned when a provider answers with no choices.
	ErrEmptyResponse = errors.New("llm: empty response")
	// ErrNotSupported is returned by providers lacking a capability.
	ErrNotSupported = errors.New("llm: operation not supported by provider")
)
