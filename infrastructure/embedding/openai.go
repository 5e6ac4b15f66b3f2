// Package embedding adapts OpenAI-compatible embedding endpoints to the
// Embedder port. The faculty deployment points this at a self-hosted
// multilingual E5 server, which is why the query/passage markers exist.
package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client calls an OpenAI-compatible /embeddings endpoint.
type Client struct {
	api   *openai.Client
	model string

	dimension     int
	queryPrefix   string
	passagePrefix string

	logger *zap.Logger
}

// Config carries the embedding endpoint settings.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	Dimension     int
	QueryPrefix   string
	PassagePrefix string
}

// NewClient builds an embedding client. BaseURL is required because the
// default OpenAI endpoint does not serve E5 models.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL

	return &Client{
		api:           openai.NewClientWithConfig(apiCfg),
		model:         cfg.Model,
		dimension:     cfg.Dimension,
		queryPrefix:   cfg.QueryPrefix,
		passagePrefix: cfg.PassagePrefix,
		logger:        logger,
	}, nil
}

// EmbedQuery embeds a user query with the query marker prepended.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{c.queryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedPassages embeds document passages with the passage marker prepended,
// preserving input order.
func (c *Client) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = c.passagePrefix + t
	}
	return c.embed(ctx, prefixed)
}

// embed calls the endpoint and reorders the response by index. Some
// OpenAI-compatible servers return embeddings out of input order.
func (c *Client) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d inputs, got %d vectors", len(inputs), len(resp.Data))
	}

	vectors := make([][]float32, len(inputs))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		if c.dimension > 0 && len(item.Embedding) != c.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", c.dimension, len(item.Embedding))
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	c.logger.Debug("embedded inputs", zap.Int("count", len(inputs)))
	return vectors, nil
}
