package domain

import "fmt"

// Capability names used to classify upstream failures.
const (
	CapabilityEmbedding    = "embedding"
	CapabilityVectorSearch = "vector_search"
	CapabilityGeneration   = "generation"
)

// UpstreamError reports that an external capability (embedding, vector
// search, or generation) was unreachable or returned a failure. The core
// never retries or downgrades these into fallback answers; they surface to
// the transport layer, which decides on user messaging.
type UpstreamError struct {
	// Capability identifies which external dependency failed.
	Capability string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s capability failed: %v", e.Capability, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *UpstreamError) Unwrap() error { return e.Err }

// NewUpstreamError wraps err as a failure of the named capability.
// Returns nil when err is nil.
func NewUpstreamError(capability string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Capability: capability, Err: err}
}
