package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/uov-ai/assistant/internal/domain"
)

// HistoryStore persists chat sessions, messages, and feedback. It is used
// only by the transport layer; the orchestration core never touches it.
type HistoryStore interface {
	// CreateSession records a new conversation.
	CreateSession(ctx context.Context, session domain.ChatSession) error

	// GetSession looks up a session by ID. The second return value is
	// false when no such session exists.
	GetSession(ctx context.Context, id uuid.UUID) (domain.ChatSession, bool, error)

	// SaveMessage appends a message to its session.
	SaveMessage(ctx context.Context, message domain.ChatMessage) error

	// SessionMessages returns up to limit messages for a session in
	// chronological order.
	SessionMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.ChatMessage, error)

	// SaveFeedback records a rating for an assistant message.
	SaveFeedback(ctx context.Context, feedback domain.Feedback) error

	// LogRequest records one served request for audit and latency review.
	LogRequest(ctx context.Context, sessionID uuid.UUID, endpoint string, latency time.Duration, requestErr error) error

	// Health reports whether the store is reachable.
	Health(ctx context.Context) bool

	// Close releases the underlying connection.
	Close() error
}
