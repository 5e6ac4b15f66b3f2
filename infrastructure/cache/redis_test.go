package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uov-ai/assistant/internal/domain"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedis(client, time.Hour, zap.NewNop()), mr
}

func TestRedis_RoundTrip(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	result := goodResult("redis answer")
	cache.Put(ctx, "What is FTS?", result)

	got, ok := cache.Get(ctx, "what is fts")
	require.True(t, ok, "variants share one normalized key")
	assert.Equal(t, result.Answer, got.Answer)
	assert.Equal(t, result.Citations, got.Citations)
	assert.Equal(t, result.Confidence, got.Confidence)
}

func TestRedis_MissOnUnknownKey(t *testing.T) {
	cache, _ := newTestRedis(t)

	_, ok := cache.Get(context.Background(), "never asked")
	assert.False(t, ok)
}

func TestRedis_PolicyExcludesFallback(t *testing.T) {
	cache, mr := newTestRedis(t)
	ctx := context.Background()

	cache.Put(ctx, "q", domain.AnswerResult{
		Answer:     "I don't have enough information to answer that.",
		Confidence: domain.ConfidenceLow,
	})

	assert.Empty(t, mr.Keys(), "fallback answers must not be written")
}

func TestRedis_TTLExpiry(t *testing.T) {
	cache, mr := newTestRedis(t)
	ctx := context.Background()

	cache.Put(ctx, "q", goodResult("answer"))

	mr.FastForward(time.Hour + time.Minute)

	_, ok := cache.Get(ctx, "q")
	assert.False(t, ok, "expired entries are misses")
}

func TestRedis_CorruptEntryIsDropped(t *testing.T) {
	cache, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(keyPrefix+"q", "{not json"))

	_, ok := cache.Get(ctx, "q")
	assert.False(t, ok, "corrupt entries read as misses")
	assert.False(t, mr.Exists(keyPrefix+"q"), "corrupt entries are deleted")
}

func TestRedis_ConnectionFailureDegradesToMiss(t *testing.T) {
	cache, mr := newTestRedis(t)
	ctx := context.Background()

	cache.Put(ctx, "q", goodResult("answer"))
	mr.Close()

	_, ok := cache.Get(ctx, "q")
	assert.False(t, ok, "connection failures must not propagate")

	// Writes after failure are absorbed.
	cache.Put(ctx, "other", goodResult("answer"))
}

func TestRedis_ClearRemovesOnlyAnswerKeys(t *testing.T) {
	cache, mr := newTestRedis(t)
	ctx := context.Background()

	cache.Put(ctx, "q1", goodResult("1"))
	cache.Put(ctx, "q2", goodResult("2"))
	require.NoError(t, mr.Set("unrelated:key", "keep"))

	cache.Clear(ctx)

	_, ok := cache.Get(ctx, "q1")
	assert.False(t, ok)
	assert.True(t, mr.Exists("unrelated:key"), "unrelated keys must survive")
}
