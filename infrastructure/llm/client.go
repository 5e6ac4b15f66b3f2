// Package llm provides a unified client for the generative capability with
// built-in support for rate limiting, retries, timeouts, and metrics.
//
// The package abstracts multiple providers (OpenAI-compatible endpoints
// including Groq, Anthropic, Google) behind a common interface while adding
// operational cross-cutting concerns through a middleware pattern. The
// answer pipeline talks to ports.LLMClient and never sees provider types.
//
// Basic usage:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey:      os.Getenv("LLM_API_KEY"),
//	    Model:       "llama-3.1-70b-versatile",
//	    BaseURL:     "https://api.groq.com/openai/v1",
//	    Temperature: 0.3,
//	    MaxTokens:   1024,
//	})
//	answer, err := client.Complete(ctx, prompt)
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/uov-ai/assistant/internal/ports"
)

// CoreLLM defines the minimal interface that providers must implement.
// Middleware wraps any conforming implementation, so resilience and
// observability compose without provider-specific code.
type CoreLLM interface {
	// DoRequest sends a prompt and returns the full response text along
	// with input and output token counts. The opts map carries settings
	// like "system", "temperature", and "max_tokens".
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// DoStream sends a prompt and delivers the response incrementally,
	// invoking emit for each text fragment in order. A non-nil error from
	// emit aborts the stream and is returned.
	DoStream(ctx context.Context, prompt string, opts map[string]any, emit func(fragment string) error) error

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model for subsequent requests.
	SetModel(model string)
}

// ClientConfig holds all configuration for creating an LLM client.
// Temperature and MaxTokens are fixed here and applied to every request;
// the answer pipeline never tunes them per call.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model specifies which model to use for requests.
	Model string

	// BaseURL overrides the provider's default endpoint. This is how the
	// "openai" provider targets Groq and other compatible services.
	BaseURL string

	// Timeout bounds individual requests. Zero means no timeout.
	Timeout time.Duration

	// Temperature controls output randomness for every request.
	Temperature float64

	// MaxTokens caps the generated length for every request.
	MaxTokens int

	// Middleware is applied in the order specified, first entry outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting
// functionality such as retries, rate limiting, or metrics.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient on top of a middleware-wrapped
// provider core.
type Client struct {
	core        CoreLLM
	temperature float64
	maxTokens   int
}

// NewClient assembles the middleware chain around the named provider and
// returns a ready-to-use client.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", providerType, err)
	}

	// Apply middleware in reverse order so the first entry is outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	return &Client{
		core:        core,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
	}, nil
}

// Complete generates the full answer text for a prompt.
func (c *Client) Complete(ctx context.Context, prompt ports.Prompt) (string, error) {
	response, _, _, err := c.core.DoRequest(ctx, prompt.User, c.requestOptions(prompt))
	return response, err
}

// Stream generates the answer incrementally. Concatenating the fragments
// passed to emit yields the same text Complete would return.
func (c *Client) Stream(ctx context.Context, prompt ports.Prompt, emit func(fragment string) error) error {
	return c.core.DoStream(ctx, prompt.User, c.requestOptions(prompt), emit)
}

// GetModel returns the configured model name from the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

func (c *Client) requestOptions(prompt ports.Prompt) map[string]any {
	opts := map[string]any{
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}
	if prompt.System != "" {
		opts["system"] = prompt.System
	}
	return opts
}

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// Provider factory registry. Providers register themselves in init so the
// set of available providers matches the compiled binary.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider factory under a name usable
// in configuration.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
