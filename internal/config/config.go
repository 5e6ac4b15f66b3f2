// Package config loads and validates the application configuration from a
// YAML file with environment variable overrides. Configuration problems are
// fatal at startup; nothing in this package is recoverable per-request.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Qdrant    QdrantConfig    `yaml:"qdrant" validate:"required"`
	Embedding EmbeddingConfig `yaml:"embedding" validate:"required"`
	LLM       LLMConfig       `yaml:"llm" validate:"required"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	History   HistoryConfig   `yaml:"history"`
	Assistant AssistantConfig `yaml:"assistant"`
	LogLevel  string          `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// ServerConfig controls the HTTP transport.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	// RateLimitPerMinute caps chat requests per client IP.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" validate:"min=1"`
}

// QdrantConfig locates the vector index.
type QdrantConfig struct {
	Host       string `yaml:"host" validate:"required"`
	Port       int    `yaml:"port" validate:"min=1,max=65535"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection" validate:"required"`
	UseTLS     bool   `yaml:"use_tls"`
}

// EmbeddingConfig locates the embedding capability and fixes the text
// markers the model requires. QueryPrefix and PassagePrefix must match the
// markers used at ingestion time; mismatches degrade retrieval silently.
type EmbeddingConfig struct {
	BaseURL       string `yaml:"base_url" validate:"required,url"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model" validate:"required"`
	Dimension     int    `yaml:"dimension" validate:"required,min=1"`
	QueryPrefix   string `yaml:"query_prefix"`
	PassagePrefix string `yaml:"passage_prefix"`
}

// LLMConfig selects and tunes the generative capability. Temperature and
// MaxTokens are applied at client construction, not per request.
type LLMConfig struct {
	Provider    string        `yaml:"provider" validate:"required,oneof=openai anthropic google"`
	APIKey      string        `yaml:"api_key" validate:"required"`
	BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`
	Model       string        `yaml:"model" validate:"required"`
	Temperature float64       `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens   int           `yaml:"max_tokens" validate:"min=1,max=8192"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RetrievalConfig sets the defaults the retriever uses when a caller does
// not supply explicit values.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k" validate:"min=1,max=20"`
	ScoreThreshold float64 `yaml:"score_threshold" validate:"min=0,max=1"`
}

// CacheConfig selects and sizes the response cache backend.
type CacheConfig struct {
	Backend    string        `yaml:"backend" validate:"oneof=memory redis"`
	MaxEntries int           `yaml:"max_entries" validate:"min=1"`
	TTL        time.Duration `yaml:"ttl" validate:"min=1s"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig locates the Redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// HistoryConfig locates the chat history store.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// AssistantConfig holds the user-facing fixed texts. The fallback wording
// is configurable; the mechanism around it (fixed text, low confidence,
// never cached) is contract.
type AssistantConfig struct {
	FallbackAnswer  string `yaml:"fallback_answer" validate:"required"`
	SelfDescription string `yaml:"self_description" validate:"required"`
}

// DefaultFallbackAnswer mirrors the production fallback wording, including
// the faculty website pointer.
const DefaultFallbackAnswer = "I don't have enough information to answer that question based on the available documents. " +
	"Please try rephrasing your question or ask about topics related to the Faculty of Technological Studies. " +
	"You can also visit https://fts.vau.ac.lk for more information."

// DefaultSelfDescription is the canned reply for identity questions.
const DefaultSelfDescription = "I am the UOV AI Assistant for the Faculty of Technological Studies at the University of Vavuniya. " +
	"I can answer questions about the faculty's programs, admissions, staff, facilities, and services, " +
	"using the faculty's official documents as my only source. Ask me anything about the faculty in English, Tamil, or Sinhala."

// Default returns a configuration populated with reference defaults.
// Required endpoint fields are intentionally left empty so that a missing
// deployment configuration fails validation instead of pointing at nothing.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8000,
			RateLimitPerMinute: 20,
		},
		Qdrant: QdrantConfig{
			Port:       6334,
			Collection: "faculty_documents",
		},
		Embedding: EmbeddingConfig{
			Model:         "intfloat/multilingual-e5-base",
			Dimension:     768,
			QueryPrefix:   "query: ",
			PassagePrefix: "passage: ",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "llama-3.1-70b-versatile",
			Temperature: 0.3,
			MaxTokens:   1024,
			Timeout:     60 * time.Second,
		},
		Retrieval: RetrievalConfig{
			TopK:           10,
			ScoreThreshold: 0.5,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			MaxEntries: 1000,
			TTL:        time.Hour,
			Redis:      RedisConfig{Addr: "localhost:6379"},
		},
		History: HistoryConfig{
			Path: "assistant.db",
		},
		Assistant: AssistantConfig{
			FallbackAnswer:  DefaultFallbackAnswer,
			SelfDescription: DefaultSelfDescription,
		},
		LogLevel: "info",
	}
}

// Load reads the configuration file at path, applies environment overrides,
// and validates the result. An empty path or a missing file falls back to
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine; env vars may carry everything.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays well-known environment variables onto the config.
// Env vars win over file values so deployments can keep secrets out of
// config files.
func applyEnv(cfg *Config) {
	setString(&cfg.Qdrant.Host, "QDRANT_HOST")
	setInt(&cfg.Qdrant.Port, "QDRANT_PORT")
	setString(&cfg.Qdrant.APIKey, "QDRANT_API_KEY")
	setString(&cfg.Qdrant.Collection, "QDRANT_COLLECTION")

	setString(&cfg.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	setString(&cfg.Embedding.APIKey, "EMBEDDING_API_KEY")
	setString(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	setInt(&cfg.Embedding.Dimension, "EMBEDDING_DIMENSION")

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")

	setString(&cfg.Cache.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Cache.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.History.Path, "HISTORY_PATH")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setInt(&cfg.Server.Port, "BACKEND_PORT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
