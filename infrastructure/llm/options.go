package llm

import (
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Parameter bounds shared by all providers.
const (
	// MinTemperature is the minimum allowed temperature.
	MinTemperature = 0.0
	// MaxTemperature accommodates providers like Gemini that allow up to 2.0.
	MaxTemperature = 2.0
	// MinTopP is the minimum allowed Top-P value.
	MinTopP = 0.0
	// MaxTopP is the maximum allowed Top-P value.
	MaxTopP = 1.0
	// DefaultMaxTokens is used when a request specifies no token cap.
	DefaultMaxTokens = 1024
	// MinTimeout is the smallest accepted request timeout.
	MinTimeout = 1 * time.Second
	// MaxTimeout is the largest accepted request timeout.
	MaxTimeout = 10 * time.Minute
)

// BaseProvider provides thread-safe model name management shared by all
// provider implementations.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model name. Safe for concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name. Safe for concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the standardized set of per-request parameters shared
// across providers.
type RequestOptions struct {
	// MaxTokens caps the number of generated tokens.
	MaxTokens int
	// Model identifies the model to use.
	Model string
	// Temperature controls output randomness. Nil means provider default.
	Temperature *float64
	// TopP enables nucleus sampling. Nil means provider default.
	TopP *float64
	// System is the system instruction for the request.
	System string
}

// ParseRequestOptions extracts standardized parameters from an options map,
// applying defaults for missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: extractInt(opts, "max_tokens", DefaultMaxTokens, func(v int) bool { return v > 0 }),
		Model:     extractString(opts, "model", defaultModel),
		System:    extractString(opts, "system", ""),
	}

	if temp, ok := extractFloat64(opts, "temperature"); ok && temp >= MinTemperature && temp <= MaxTemperature {
		options.Temperature = &temp
	}
	if topP, ok := extractFloat64(opts, "top_p"); ok && topP >= MinTopP && topP <= MaxTopP {
		options.TopP = &topP
	}
	return options
}

func extractInt(opts map[string]any, key string, defaultVal int, valid func(int) bool) int {
	if v, ok := opts[key].(int); ok && valid(v) {
		return v
	}
	return defaultVal
}

func extractString(opts map[string]any, key, defaultVal string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return defaultVal
}

func extractFloat64(opts map[string]any, key string) (float64, bool) {
	v, ok := opts[key].(float64)
	return v, ok
}

// TokenCounter estimates token counts when the provider does not report
// exact usage, such as on streamed responses.
type TokenCounter struct {
	// CharactersPerToken is the average characters-per-token ratio.
	CharactersPerToken float64
}

// NewTokenCounter returns a counter with a ratio suitable for English text.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens approximates the token count of text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(float64(len(text)) / tc.CharactersPerToken)
}

// GetTokenCount returns actualCount when positive, otherwise an estimate
// derived from text.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}

// ValidateBaseURL checks that a base URL has an http(s) scheme and a host.
// An empty string is valid and selects the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return parsed.String(), nil
}

// ValidateTimeout clamps a timeout to the accepted range. Zero or negative
// returns zero, meaning the system default applies.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	if timeout < MinTimeout {
		return MinTimeout
	}
	if timeout > MaxTimeout {
		return MaxTimeout
	}
	return timeout
}

// ClampFloat64 clamps val into [min, max].
func ClampFloat64(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
