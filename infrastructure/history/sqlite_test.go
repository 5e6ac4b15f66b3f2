package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uov-ai/assistant/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := domain.ChatSession{ID: uuid.New(), CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateSession(ctx, session))

	got, found, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, session.ID, got.ID)

	_, found, err = store.GetSession(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, found, "unknown session reports not found without error")
}

func TestStore_MessagesKeepOrderAndCitations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := domain.ChatSession{ID: uuid.New(), CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateSession(ctx, session))

	page := 4
	base := time.Now().UTC()
	userMsg := domain.ChatMessage{
		ID: uuid.New(), SessionID: session.ID,
		Role: domain.RoleUser, Content: "When do admissions open?",
		CreatedAt: base,
	}
	assistantMsg := domain.ChatMessage{
		ID: uuid.New(), SessionID: session.ID,
		Role: domain.RoleAssistant, Content: "In March [1].",
		Citations: []domain.Citation{{Source: "handbook.pdf", Title: "Handbook", Page: &page, Score: 0.9}},
		CreatedAt: base.Add(time.Second),
	}
	require.NoError(t, store.SaveMessage(ctx, userMsg))
	require.NoError(t, store.SaveMessage(ctx, assistantMsg))

	messages, err := store.SessionMessages(ctx, session.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, domain.RoleUser, messages[0].Role, "messages come back in chronological order")
	assert.Empty(t, messages[0].Citations)

	assert.Equal(t, domain.RoleAssistant, messages[1].Role)
	require.Len(t, messages[1].Citations, 1)
	assert.Equal(t, "handbook.pdf", messages[1].Citations[0].Source)
	require.NotNil(t, messages[1].Citations[0].Page)
	assert.Equal(t, 4, *messages[1].Citations[0].Page)
}

func TestStore_SessionMessagesLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := domain.ChatSession{ID: uuid.New(), CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateSession(ctx, session))

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveMessage(ctx, domain.ChatMessage{
			ID: uuid.New(), SessionID: session.ID,
			Role: domain.RoleUser, Content: "q",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	messages, err := store.SessionMessages(ctx, session.ID, 3)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
}

func TestStore_FeedbackAndRequestLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	feedback := domain.Feedback{
		ID: uuid.New(), SessionID: uuid.New(), MessageID: uuid.New(),
		Rating: domain.RatingUp, Comment: "helpful",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveFeedback(ctx, feedback))

	require.NoError(t, store.LogRequest(ctx, feedback.SessionID, "/chat", 120*time.Millisecond, nil))
	require.NoError(t, store.LogRequest(ctx, feedback.SessionID, "/chat", 80*time.Millisecond, context.DeadlineExceeded))
}

func TestStore_Health(t *testing.T) {
	store := newTestStore(t)
	assert.True(t, store.Health(context.Background()))
}
