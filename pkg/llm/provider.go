package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderLocal  = "local"
)

// Config selects and configures a provider.
type Config struct {
	Provider          string        `mapstructure:"provider"`
	ImageProvider     string        `mapstructure:"image_provider"`
	OpenAIKeys        []string      `mapstructure:"openai_keys"`
	OpenAIBaseURL     string        `mapstructure:"openai_base_url"`
	GeminiAPIKey      string        `mapstructure:"gemini_api_key"`
	Models            Models        `mapstructure:"models"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"`
}

// NewFromConfig builds the configured provider. The local provider needs no
// credentials: it embeds with feature hashing and answers chat calls with
// the Echo client.
func NewFromConfig(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Provider
	if name == "" {
		name = ProviderOpenAI
	}

	var p *Provider
	switch name {
	case ProviderOpenAI:
		o, err := newOpenAIFromConfig(cfg, logger)
		if err != nil {
			return nil, err
		}
		p = &Provider{Name: name, Chat: o, Embedder: o, Images: o, Models: o.models}

	case ProviderGemini:
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.Models)
		if err != nil {
			return nil, err
		}
		p = &Provider{Name: name, Chat: g, Embedder: g, Images: g, Models: g.models}

	case ProviderLocal:
		models := cfg.Models
		if models == (Models{}) {
			models = Models{Small: "echo", Large: "echo", Embedding: "hash-256", Image: "none"}
		}
		p = &Provider{Name: name, Chat: Echo{}, Embedder: NewHashEmbedder(256), Images: Placeholder{}, Models: models}

	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}

	// The image backend can differ from the chat backend.
	switch {
	case cfg.ImageProvider == "" || cfg.ImageProvider == name:
	case cfg.ImageProvider == ProviderGemini && cfg.GeminiAPIKey != "":
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, Models{})
		if err != nil {
			return nil, err
		}
		p.Images = g
	case cfg.ImageProvider == ProviderOpenAI && len(cfg.OpenAIKeys) > 0:
		o, err := newOpenAIFromConfig(cfg, logger)
		if err != nil {
			return nil, err
		}
		p.Images = o
	default:
		logger.Warn("Image provider not configured, keeping chat provider", "image_provider", cfg.ImageProvider, "provider", name)
	}

	logger.Debug("LLM provider ready", "provider", p.Name, "small", p.Models.Small, "large", p.Models.Large)
	return p, nil
}

func newOpenAIFromConfig(cfg Config, logger *slog.Logger) (*OpenAI, error) {
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		burst := int(cfg.RequestsPerMinute / 30)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), burst)
	}
	return NewOpenAI(OpenAIConfig{
		Keys:    cfg.OpenAIKeys,
		BaseURL: cfg.OpenAIBaseURL,
		Models:  cfg.Models,
		Pool:    []PoolOption{WithCooldown(cfg.Cooldown)},
		Limiter: limiter,
		Logger:  logger,
	})
}
