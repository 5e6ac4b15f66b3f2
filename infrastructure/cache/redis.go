package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/uov-ai/assistant/internal/domain"
)

// keyPrefix namespaces answer entries in a shared Redis instance.
const keyPrefix = "assistant:answer:"

// Redis is an answer cache backed by Redis, for deployments running more
// than one API replica. Redis failures degrade to cache misses; the cache
// is strictly best-effort.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis builds a Redis-backed cache. The connection is verified lazily;
// use Ping to check it at startup.
func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Ping verifies the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get returns the cached result for a question. Connection errors and
// corrupt entries are logged and reported as misses.
func (r *Redis) Get(ctx context.Context, question string) (domain.AnswerResult, bool) {
	key := keyPrefix + NormalizeKey(question)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("cache read failed", zap.Error(err))
		}
		return domain.AnswerResult{}, false
	}

	var result domain.AnswerResult
	if err := json.Unmarshal(data, &result); err != nil {
		r.logger.Warn("corrupt cache entry dropped", zap.String("key", key), zap.Error(err))
		r.client.Del(ctx, key)
		return domain.AnswerResult{}, false
	}
	return result, true
}

// Put stores a result with the configured TTL unless the write policy
// excludes it. Storage failures are logged and absorbed.
func (r *Redis) Put(ctx context.Context, question string, result domain.AnswerResult) {
	if !Cacheable(result) {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		r.logger.Warn("cache encode failed", zap.Error(err))
		return
	}

	key := keyPrefix + NormalizeKey(question)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Warn("cache write failed", zap.Error(err))
	}
}

// Clear removes all answer entries, leaving unrelated keys in the shared
// instance untouched.
func (r *Redis) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			r.logger.Warn("cache clear failed", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("cache scan failed", zap.Error(err))
	}
}
