package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/ingest-pipeline/internal/domain"
)

// Redis caches fetch results in Redis with a server-side TTL. Expiry is Redis's
// own, so there is nothing to evict lazily here.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewRedis creates a Redis-backed cache against the given address.
func NewRedis(addr string, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		logger: logger,
	}
}

// Ping verifies connectivity, for health checks.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func cacheKey(url string) string {
	return fmt.Sprintf("fetch:%s", url)
}

func (r *Redis) Get(ctx context.Context, url string) (domain.FetchResult, bool) {
	raw, err := r.client.Get(ctx, cacheKey(url)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("redis cache get failed", zap.String("url", url), zap.Error(err))
		}
		r.misses.Add(1)
		return domain.FetchResult{}, false
	}

	var res domain.FetchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		// A corrupt entry only costs us one re-fetch.
		r.logger.Warn("redis cache entry corrupt", zap.String("url", url), zap.Error(err))
		r.client.Del(ctx, cacheKey(url))
		r.misses.Add(1)
		return domain.FetchResult{}, false
	}

	r.hits.Add(1)
	res.FromCache = true
	return res, true
}

func (r *Redis) Set(ctx context.Context, url string, res domain.FetchResult) {
	raw, err := json.Marshal(res)
	if err != nil {
		r.logger.Warn("redis cache marshal failed", zap.String("url", url), zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, cacheKey(url), raw, r.ttl).Err(); err != nil {
		r.logger.Warn("redis cache set failed", zap.String("url", url), zap.Error(err))
		return
	}
	r.sets.Add(1)
}

func (r *Redis) Stats() Stats {
	// Redis evicts expired keys itself; report what this process observed.
	return Stats{
		Total:  r.sets.Load(),
		Valid:  r.sets.Load(),
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
	}
}
