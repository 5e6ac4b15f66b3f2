// Package history persists chat sessions, messages, feedback, and a
// request log in SQLite. The store backs the HTTP transport only; the
// answer pipeline has no dependency on it.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/uov-ai/assistant/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	citations  TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);

CREATE TABLE IF NOT EXISTS feedback (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	rating     TEXT NOT NULL,
	comment    TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS request_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	endpoint   TEXT NOT NULL,
	latency_ms INTEGER NOT NULL,
	error      TEXT,
	created_at TIMESTAMP NOT NULL
);
`

// Store is a SQLite-backed chat history store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// CreateSession records a new conversation.
func (s *Store) CreateSession(ctx context.Context, session domain.ChatSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at) VALUES (?, ?)`,
		session.ID.String(), session.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession looks up a session by ID.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (domain.ChatSession, bool, error) {
	var session domain.ChatSession
	var rawID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM sessions WHERE id = ?`, id.String()).
		Scan(&rawID, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChatSession{}, false, nil
	}
	if err != nil {
		return domain.ChatSession{}, false, fmt.Errorf("get session: %w", err)
	}
	session.ID, err = uuid.Parse(rawID)
	if err != nil {
		return domain.ChatSession{}, false, fmt.Errorf("parse session id: %w", err)
	}
	return session, true, nil
}

// SaveMessage appends a message to its session. Citations are stored as a
// JSON column since they are only ever read back whole.
func (s *Store) SaveMessage(ctx context.Context, message domain.ChatMessage) error {
	var citations []byte
	if len(message.Citations) > 0 {
		var err error
		citations, err = json.Marshal(message.Citations)
		if err != nil {
			return fmt.Errorf("encode citations: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, citations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		message.ID.String(), message.SessionID.String(), string(message.Role),
		message.Content, nullableString(citations), message.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// SessionMessages returns up to limit messages for a session in
// chronological order.
func (s *Store) SessionMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, citations, created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY created_at ASC LIMIT ?`,
		sessionID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var (
			msg        domain.ChatMessage
			rawID      string
			rawSession string
			role       string
			citations  sql.NullString
		)
		if err := rows.Scan(&rawID, &rawSession, &role, &msg.Content, &citations, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if msg.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("parse message id: %w", err)
		}
		if msg.SessionID, err = uuid.Parse(rawSession); err != nil {
			return nil, fmt.Errorf("parse session id: %w", err)
		}
		msg.Role = domain.MessageRole(role)
		if citations.Valid && citations.String != "" {
			if err := json.Unmarshal([]byte(citations.String), &msg.Citations); err != nil {
				s.logger.Warn("corrupt citations column", zap.String("message_id", rawID), zap.Error(err))
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveFeedback records a rating for an assistant message.
func (s *Store) SaveFeedback(ctx context.Context, feedback domain.Feedback) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, session_id, message_id, rating, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		feedback.ID.String(), feedback.SessionID.String(), feedback.MessageID.String(),
		string(feedback.Rating), feedback.Comment, feedback.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

// LogRequest records one served request.
func (s *Store) LogRequest(ctx context.Context, sessionID uuid.UUID, endpoint string, latency time.Duration, requestErr error) error {
	var errText any
	if requestErr != nil {
		errText = requestErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO request_log (session_id, endpoint, latency_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID.String(), endpoint, latency.Milliseconds(), errText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("log request: %w", err)
	}
	return nil
}

// Health reports whether the database answers a ping.
func (s *Store) Health(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

// Close releases the database connection.
func (s *Store) Close() error { return s.db.Close() }

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
