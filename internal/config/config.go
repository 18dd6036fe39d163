// Package config loads lattice settings from an optional YAML file and the
// environment.
//
// Every key can be set with a LATTICE_ variable where dots become
// underscores (LATTICE_SERVER_PORT). The variable names of the original
// deployment (OPENAI_API_KEY, LLM_PROVIDER, PORT and so on) are bound as
// well so existing environments keep working.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/lattice/pkg/llm"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	LLM       llm.Config      `mapstructure:"llm"`
	Store     StoreConfig     `mapstructure:"store"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Examples  ExamplesConfig  `mapstructure:"examples"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects where saved workflows live.
type StoreConfig struct {
	Backend   string      `mapstructure:"backend"`
	Dir       string      `mapstructure:"dir"`
	ListLimit int         `mapstructure:"list_limit"`
	Redis     RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the redis workflow store and lock.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// RetrievalConfig selects the vector store and knowledge bases.
type RetrievalConfig struct {
	Backend        string   `mapstructure:"backend"`
	DatabaseURL    string   `mapstructure:"database_url"`
	Dimension      int      `mapstructure:"dimension"`
	KnowledgeBase  string   `mapstructure:"knowledge_base"`
	KnowledgeBases []string `mapstructure:"knowledge_bases"`
	DocumentsDir   string   `mapstructure:"documents_dir"`
	Rerank         bool     `mapstructure:"rerank"`
}

// ExamplesConfig points at an extra directory of example workflows served
// next to the built-in ones.
type ExamplesConfig struct {
	Dir string `mapstructure:"dir"`
}

// TracingConfig enables OTLP span export.
type TracingConfig struct {
	Enabled                  bool `mapstructure:"enabled"`
	observability.OTelConfig `mapstructure:",squash"`
}

// legacyEnv maps keys to the variable names used by earlier deployments.
var legacyEnv = map[string]string{
	"llm.provider":           "LLM_PROVIDER",
	"llm.openai_keys":        "OPENAI_API_KEY",
	"llm.openai_base_url":    "OPENAI_BASE_URL",
	"llm.gemini_api_key":     "GEMINI_API_KEY",
	"llm.image_provider":     "IMAGE_PROVIDER",
	"llm.models.small":       "SMALL_MODEL",
	"llm.models.large":       "LARGE_MODEL",
	"llm.models.embedding":   "EMBEDDING_MODEL",
	"retrieval.database_url": "DATABASE_URL",
	"server.host":            "HOST",
	"server.port":            "PORT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("llm.provider", llm.ProviderOpenAI)
	v.SetDefault("llm.image_provider", "")
	v.SetDefault("llm.openai_keys", []string{})
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.cooldown", 60*time.Second)
	v.SetDefault("llm.requests_per_minute", 0)
	models := llm.DefaultModels()
	v.SetDefault("llm.models.small", models.Small)
	v.SetDefault("llm.models.large", models.Large)
	v.SetDefault("llm.models.embedding", models.Embedding)
	v.SetDefault("llm.models.image", models.Image)

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.dir", ".lattice/workflows")
	v.SetDefault("store.list_limit", 50)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "lattice:workflow:")

	v.SetDefault("retrieval.backend", BackendMemory)
	v.SetDefault("retrieval.database_url", "")
	v.SetDefault("retrieval.dimension", 1536)
	v.SetDefault("retrieval.knowledge_base", "legal")
	v.SetDefault("retrieval.knowledge_bases", []string{"legal", "audit"})
	v.SetDefault("retrieval.documents_dir", "")
	v.SetDefault("retrieval.rerank", true)

	v.SetDefault("examples.dir", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "lattice")
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
}

// Load reads path, or lattice.yaml in the working directory when path is
// empty, and overlays the environment. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LATTICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "LATTICE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lattice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LLM.OpenAIKeys = splitKeys(cfg.LLM.OpenAIKeys)
	// A database URL alone selects pgvector, as older deployments expect.
	if !v.IsSet("retrieval.backend") && cfg.Retrieval.DatabaseURL != "" {
		cfg.Retrieval.Backend = BackendPostgres
	}
	return &cfg, cfg.Validate()
}

// Validate rejects unknown backends.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Retrieval.Backend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("unknown retrieval backend %q", c.Retrieval.Backend)
	}
	if c.Retrieval.Backend == BackendPostgres && c.Retrieval.DatabaseURL == "" {
		return fmt.Errorf("retrieval backend %q needs database_url", BackendPostgres)
	}
	return nil
}

// splitKeys flattens comma-separated entries and drops blanks.
func splitKeys(in []string) []string {
	out := []string{}
	for _, k := range in {
		for _, part := range strings.Split(k, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
