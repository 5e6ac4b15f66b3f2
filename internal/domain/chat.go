package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// FeedbackRating is a thumbs-up / thumbs-down vote on an assistant message.
type FeedbackRating string

const (
	RatingUp   FeedbackRating = "up"
	RatingDown FeedbackRating = "down"
)

// ChatSession groups the messages of one conversation.
type ChatSession struct {
	ID        uuid.UUID `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one persisted turn of a conversation. Assistant messages
// keep the citations that accompanied the answer.
type ChatMessage struct {
	ID        uuid.UUID   `json:"message_id"`
	SessionID uuid.UUID   `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Citations []Citation  `json:"citations,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Feedback is a user's rating of one assistant message.
type Feedback struct {
	ID        uuid.UUID      `json:"feedback_id"`
	SessionID uuid.UUID      `json:"session_id"`
	MessageID uuid.UUID      `json:"message_id"`
	Rating    FeedbackRating `json:"rating"`
	Comment   string         `json:"comment,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
