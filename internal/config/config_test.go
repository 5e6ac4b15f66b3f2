package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalYAML carries only the fields without usable defaults.
const minimalYAML = `
qdrant:
  host: localhost
embedding:
  base_url: http://localhost:8080/v1
llm:
  api_key: test-key
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "faculty_documents", cfg.Qdrant.Collection)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, "query: ", cfg.Embedding.QueryPrefix)
	assert.Equal(t, "passage: ", cfg.Embedding.PassagePrefix)
	assert.Equal(t, 0.3, cfg.LLM.Temperature)
	assert.Equal(t, 1024, cfg.LLM.MaxTokens)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 0.5, cfg.Retrieval.ScoreThreshold)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Contains(t, cfg.Assistant.FallbackAnswer, "don't have enough information")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
retrieval:
  top_k: 5
  score_threshold: 0.7
cache:
  backend: redis
  ttl: 30m
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.7, cfg.Retrieval.ScoreThreshold)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("LLM_API_KEY", "env-key")
	t.Setenv("EMBEDDING_DIMENSION", "1024")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, 1024, cfg.Embedding.Dimension)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	invalid := []string{
		minimalYAML + "llm:\n  provider: mystery\n  api_key: k\n  model: m\n",
		minimalYAML + "retrieval:\n  top_k: 50\n",
		minimalYAML + "server:\n  port: 99999\n",
	}
	for _, content := range invalid {
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err, "config should be rejected:\n%s", content)
	}
}

func TestLoad_MissingRequiredFieldsFail(t *testing.T) {
	_, err := Load(writeConfig(t, "llm:\n  api_key: k\n"))
	require.Error(t, err, "missing qdrant host and embedding base URL must fail validation")
}

func TestLoad_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("QDRANT_HOST", "localhost")
	t.Setenv("EMBEDDING_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("LLM_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err, "a missing file falls back to defaults plus env")
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
}
