package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uov-ai/assistant/internal/domain"
)

// Memory is an in-process answer cache with LRU eviction and TTL expiry.
// Expired entries are dropped lazily at read time; a background sweeper can
// reclaim memory for entries that are never read again.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // Front is most recently used.
	maxEntries int
	ttl        time.Duration

	// now is replaceable in tests.
	now func() time.Time

	hits      uint64
	misses    uint64
	evictions uint64

	logger *zap.Logger
}

type memoryEntry struct {
	key       string
	result    domain.AnswerResult
	expiresAt time.Time
}

// NewMemory builds an in-memory cache holding at most maxEntries results,
// each valid for ttl.
func NewMemory(maxEntries int, ttl time.Duration, logger *zap.Logger) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Memory{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		logger:     logger,
	}
}

// Get returns the cached result for a question. An entry past its TTL is
// removed and reported as a miss.
func (m *Memory) Get(_ context.Context, question string) (domain.AnswerResult, bool) {
	key := NormalizeKey(question)

	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		m.misses++
		return domain.AnswerResult{}, false
	}

	entry := elem.Value.(*memoryEntry)
	if m.now().After(entry.expiresAt) {
		m.removeLocked(elem)
		m.misses++
		return domain.AnswerResult{}, false
	}

	m.order.MoveToFront(elem)
	m.hits++
	return entry.result, true
}

// Put stores a result unless the write policy excludes it. An existing
// entry for the same key is replaced and its TTL restarted.
func (m *Memory) Put(_ context.Context, question string, result domain.AnswerResult) {
	if !Cacheable(result) {
		return
	}
	key := NormalizeKey(question)

	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.result = result
		entry.expiresAt = m.now().Add(m.ttl)
		m.order.MoveToFront(elem)
		return
	}

	if m.order.Len() >= m.maxEntries {
		m.evictOldestLocked()
	}

	elem := m.order.PushFront(&memoryEntry{
		key:       key,
		result:    result,
		expiresAt: m.now().Add(m.ttl),
	})
	m.entries[key] = elem
}

// Clear removes all entries.
func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*list.Element)
	m.order.Init()
}

// Len returns the number of stored entries, including any not yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Stats reports hit, miss, and eviction counts since construction.
func (m *Memory) Stats() (hits, misses, evictions uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses, m.evictions
}

// CleanupExpired removes all entries past their TTL and returns how many
// were dropped.
func (m *Memory) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int
	now := m.now()
	for elem := m.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*memoryEntry).expiresAt) {
			m.removeLocked(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// StartSweeper runs CleanupExpired on the given interval until ctx is
// cancelled.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := m.CleanupExpired(); removed > 0 {
					m.logger.Debug("swept expired cache entries", zap.Int("removed", removed))
				}
			}
		}
	}()
}

func (m *Memory) evictOldestLocked() {
	if oldest := m.order.Back(); oldest != nil {
		m.removeLocked(oldest)
		m.evictions++
	}
}

func (m *Memory) removeLocked(elem *list.Element) {
	m.order.Remove(elem)
	delete(m.entries, elem.Value.(*memoryEntry).key)
}
