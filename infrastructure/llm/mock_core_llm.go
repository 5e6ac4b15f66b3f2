package llm

import (
	"context"
	"sync"
	"time"
)

// MockCoreLLM is a configurable CoreLLM implementation for testing
// middleware and client behavior, including streaming.
type MockCoreLLM struct {
	mu sync.Mutex

	// Response configuration
	Response      string
	Fragments     []string // Stream output; defaults to Response as one fragment.
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt makes the first N calls fail, then succeed.
	FailUntilAttempt int

	// Tracking
	CallCount      int
	StreamCount    int
	LastPrompt     string
	LastOpts       map[string]any
	CallTimestamps []time.Time
}

// NewMockCoreLLM creates a mock with default successful behavior.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest implements CoreLLM with configurable behavior.
func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := m.track(ctx, prompt, opts); err != nil {
		return "", 0, 0, err
	}
	return m.Response, m.TokensIn, m.TokensOut, nil
}

// DoStream implements CoreLLM, emitting Fragments in order (or Response as
// a single fragment when Fragments is nil).
func (m *MockCoreLLM) DoStream(ctx context.Context, prompt string, opts map[string]any, emit func(string) error) error {
	if err := m.track(ctx, prompt, opts); err != nil {
		return err
	}
	m.mu.Lock()
	m.StreamCount++
	fragments := m.Fragments
	if fragments == nil {
		fragments = []string{m.Response}
	}
	m.mu.Unlock()

	for _, f := range fragments {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := emit(f); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockCoreLLM) track(ctx context.Context, prompt string, opts map[string]any) error {
	m.mu.Lock()
	m.CallCount++
	count := m.CallCount
	m.LastPrompt = prompt
	m.LastOpts = opts
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay := m.ResponseDelay
	failUntil := m.FailUntilAttempt
	err := m.Error
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if failUntil > 0 && count <= failUntil {
		if err != nil {
			return err
		}
		return NewProviderError("mock", ErrorTypeServerError, 503, "simulated failure", nil)
	}
	return err
}

// GetModel returns the configured model name.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the model name.
func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount returns the number of calls made.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
