package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	Keys     []string
	BaseURL  string
	Models   Models
	Pool     []PoolOption
	Limiter  *rate.Limiter
	Logger   *slog.Logger
}

// OpenAI implements Client, Embedder and ImageGenerator over the OpenAI API.
// Each key gets its own client; a 429 marks the key exhausted and the call is
// retried with the next available key.
type OpenAI struct {
	pool    *KeyPool
	clients map[string]*openai.Client
	limiter *rate.Limiter
	models  Models
	logger  *slog.Logger
}

// NewOpenAI creates the provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	pool, err := NewKeyPool(cfg.Keys, cfg.Pool...)
	if err != nil {
		return nil, err
	}

	o := &OpenAI{
		pool:    pool,
		clients: make(map[string]*openai.Client, len(cfg.Keys)),
		limiter: cfg.Limiter,
		models:  cfg.Models,
		logger:  cfg.Logger,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.models == (Models{}) {
		o.models = DefaultModels()
	}
	for _, key := range cfg.Keys {
		if key == "" {
			continue
		}
		c := openai.DefaultConfig(key)
		if cfg.BaseURL != "" {
			c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
		o.clients[key] = openai.NewClientWithConfig(c)
	}
	return o, nil
}

// Pool exposes the key pool.
func (o *OpenAI) Pool() *KeyPool { return o.pool }

// Chat implements Client.
func (o *OpenAI) Chat(ctx context.Context, req ChatRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	request := openai.ChatCompletionRequest{
		Model:       o.models.Resolve(req.Model, "small"),
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	return withKey(ctx, o, "chat", func(c *openai.Client) (string, error) {
		resp, err := c.CreateChatCompletion(ctx, request)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// Embed implements Embedder.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	request := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.models.Embedding),
	}

	return withKey(ctx, o, "embed", func(c *openai.Client) ([][]float32, error) {
		resp, err := c.CreateEmbeddings(ctx, request)
		if err != nil {
			return nil, err
		}
		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(resp.Data), len(texts))
		}
		out := make([][]float32, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(out) {
				return nil, fmt.Errorf("embed: index %d out of range", d.Index)
			}
			out[d.Index] = d.Embedding
		}
		return out, nil
	})
}

// GenerateImage implements ImageGenerator.
func (o *OpenAI) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	size := req.Size
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}
	prompt := req.Prompt
	if suffix, ok := imageStyles[req.Style]; ok {
		prompt = fmt.Sprintf("%s. Style: %s", prompt, suffix)
	}
	request := openai.ImageRequest{
		Prompt:         prompt,
		Model:          o.models.Image,
		N:              1,
		Size:           size,
		Quality:        openai.CreateImageQualityStandard,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	}

	return withKey(ctx, o, "image", func(c *openai.Client) (*Image, error) {
		resp, err := c.CreateImage(ctx, request)
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, ErrEmptyResponse
		}
		img := &Image{
			URL:           resp.Data[0].URL,
			RevisedPrompt: resp.Data[0].RevisedPrompt,
			Size:          size,
			Provider:      "dalle",
		}
		if img.URL == "" && resp.Data[0].B64JSON != "" {
			img.URL = "data:image/png;base64," + resp.Data[0].B64JSON
		}
		return img, nil
	})
}

// withKey runs call with an acquired key, rotating on rate limits. It gives
// up when the pool has no key left out of cooldown.
func withKey[T any](ctx context.Context, o *OpenAI, op string, call func(*openai.Client) (T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < o.pool.Len(); attempt++ {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}
		key, err := o.pool.Acquire()
		if err != nil {
			return zero, fmt.Errorf("%s: %w: %w", op, ErrRateLimited, err)
		}

		out, err := call(o.clients[key])
		if err == nil {
			o.pool.Reset(key)
			return out, nil
		}
		if !isRateLimit(err) {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
		o.pool.MarkExhausted(key)
		o.logger.Warn("API key rate limited, rotating", "op", op, "available", o.pool.Available(), "keys", o.pool.Len())
	}
	return zero, fmt.Errorf("%s: %w: %w", op, ErrRateLimited, domain.ErrNoAvailableKey)
}

func isRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

var imageStyles = map[string]string{
	"photo":        "photorealistic, high detail, natural lighting",
	"diagram":      "clean technical diagram, labeled, white background",
	"artistic":     "artistic painting, expressive brush strokes",
	"cartoon":      "cartoon style, bold outlines, vibrant colors",
	"illustration": "digital illustration, flat colors, clean lines",
}
