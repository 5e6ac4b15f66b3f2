package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uov-ai/assistant/internal/domain"
)

func goodResult(answer string) domain.AnswerResult {
	return domain.AnswerResult{
		Answer:          answer,
		Citations:       []domain.Citation{{Source: "a.pdf"}},
		ChunksRetrieved: 3,
		Confidence:      domain.ConfidenceHigh,
	}
}

func TestNormalizeKey_CanonicalizesVariants(t *testing.T) {
	variants := []string{
		"What is FTS?",
		"what is fts",
		"  What is FTS  ",
		"WHAT IS FTS???",
	}
	for _, v := range variants {
		assert.Equal(t, "what is fts", NormalizeKey(v), "variant %q should normalize to the same key", v)
	}
}

func TestNormalizeKey_Idempotent(t *testing.T) {
	once := NormalizeKey("  How Do I Apply?! ")
	assert.Equal(t, once, NormalizeKey(once), "normalizing twice must be a no-op")
}

func TestCacheable_Policy(t *testing.T) {
	assert.True(t, Cacheable(goodResult("real answer")))

	assert.False(t, Cacheable(domain.AnswerResult{Answer: ""}), "empty answers are never cached")

	fallback := domain.AnswerResult{
		Answer:     "I don't have enough information to answer that question.",
		Confidence: domain.ConfidenceLow,
	}
	assert.False(t, Cacheable(fallback), "low-confidence fallback answers are never cached")

	// The marker alone is not disqualifying when confidence is not low.
	hedged := domain.AnswerResult{
		Answer:     "The documents don't have enough information on fees, but admissions open in March [1].",
		Confidence: domain.ConfidenceHigh,
	}
	assert.True(t, Cacheable(hedged), "marker with non-low confidence stays cacheable")
}

func TestMemory_RoundTripWithNormalizedKeys(t *testing.T) {
	cache := NewMemory(10, time.Hour, zap.NewNop())
	ctx := context.Background()

	cache.Put(ctx, "What is FTS?", goodResult("answer"))

	got, ok := cache.Get(ctx, "what is fts")
	require.True(t, ok, "case and punctuation variants share one entry")
	assert.Equal(t, "answer", got.Answer)
}

func TestMemory_PolicyExcludesFallback(t *testing.T) {
	cache := NewMemory(10, time.Hour, zap.NewNop())
	ctx := context.Background()

	cache.Put(ctx, "q", domain.AnswerResult{
		Answer:     "I don't have enough information to answer that question.",
		Confidence: domain.ConfidenceLow,
	})

	_, ok := cache.Get(ctx, "q")
	assert.False(t, ok, "fallback answers must not be stored")
	assert.Zero(t, cache.Len())
}

func TestMemory_TTLExpiryAtReadTime(t *testing.T) {
	cache := NewMemory(10, time.Hour, zap.NewNop())
	ctx := context.Background()

	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Put(ctx, "q", goodResult("answer"))

	// Still valid just before the deadline.
	cache.now = func() time.Time { return now.Add(time.Hour - time.Second) }
	_, ok := cache.Get(ctx, "q")
	assert.True(t, ok)

	// Expired after.
	cache.now = func() time.Time { return now.Add(time.Hour + time.Second) }
	_, ok = cache.Get(ctx, "q")
	assert.False(t, ok, "expired entries are misses")
	assert.Zero(t, cache.Len(), "expired entries are removed on read")
}

func TestMemory_LRUEviction(t *testing.T) {
	cache := NewMemory(2, time.Hour, zap.NewNop())
	ctx := context.Background()

	cache.Put(ctx, "first", goodResult("1"))
	cache.Put(ctx, "second", goodResult("2"))

	// Touch "first" so "second" becomes least recently used.
	_, ok := cache.Get(ctx, "first")
	require.True(t, ok)

	cache.Put(ctx, "third", goodResult("3"))

	_, ok = cache.Get(ctx, "second")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = cache.Get(ctx, "first")
	assert.True(t, ok)
	_, ok = cache.Get(ctx, "third")
	assert.True(t, ok)

	_, _, evictions := cache.Stats()
	assert.Equal(t, uint64(1), evictions)
}

func TestMemory_PutReplacesAndRestartsTTL(t *testing.T) {
	cache := NewMemory(10, time.Hour, zap.NewNop())
	ctx := context.Background()

	now := time.Now()
	cache.now = func() time.Time { return now }
	cache.Put(ctx, "q", goodResult("old"))

	cache.now = func() time.Time { return now.Add(30 * time.Minute) }
	cache.Put(ctx, "q", goodResult("new"))

	// 1h30m after the first write but only 1h after the second.
	cache.now = func() time.Time { return now.Add(90*time.Minute - time.Second) }
	got, ok := cache.Get(ctx, "q")
	require.True(t, ok, "replacement restarts the TTL")
	assert.Equal(t, "new", got.Answer)
	assert.Equal(t, 1, cache.Len(), "replacement must not duplicate the entry")
}

func TestMemory_CleanupExpired(t *testing.T) {
	cache := NewMemory(10, time.Hour, zap.NewNop())
	ctx := context.Background()

	now := time.Now()
	cache.now = func() time.Time { return now }
	cache.Put(ctx, "a", goodResult("1"))
	cache.Put(ctx, "b", goodResult("2"))

	cache.now = func() time.Time { return now.Add(2 * time.Hour) }
	removed := cache.CleanupExpired()

	assert.Equal(t, 2, removed)
	assert.Zero(t, cache.Len())
}

func TestMemory_Clear(t *testing.T) {
	cache := NewMemory(10, time.Hour, zap.NewNop())
	ctx := context.Background()

	cache.Put(ctx, "a", goodResult("1"))
	cache.Clear(ctx)

	assert.Zero(t, cache.Len())
	_, ok := cache.Get(ctx, "a")
	assert.False(t, ok)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	cache := NewMemory(100, time.Hour, zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("question %d-%d", n, j%10)
				cache.Put(ctx, key, goodResult(key))
				cache.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	hits, misses, _ := cache.Stats()
	assert.NotZero(t, hits+misses, "stats should record activity")
}
