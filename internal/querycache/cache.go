// Package querycache caches full plagiarism reports in Redis. Checks are
// deterministic for a fixed index and thresholds version, so identical texts
// can share one result until the corpus or thresholds change, at which point
// the whole namespace is invalidated. Concurrent misses for the same key are
// collapsed with singleflight so the index is only probed once.
package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/duplicheck/duplicheck/internal/detector"
	"github.com/duplicheck/duplicheck/pkg/config"
	"github.com/duplicheck/duplicheck/pkg/metrics"
)

const keyPrefix = "check:"

// ReportCache is a read-through Redis cache for detection reports. A nil
// receiver or nil Redis client disables caching and computes directly.
type ReportCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// Connect dials Redis, verifies the connection with a PING, and returns a
// cache holding the live client.
func Connect(cfg config.RedisConfig, m *metrics.Metrics) (*ReportCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newWithClient(rdb, cfg.CacheTTL, m), nil
}

func newWithClient(rdb *redis.Client, ttl time.Duration, m *metrics.Metrics) *ReportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportCache{
		rdb:     rdb,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key derives the cache key from the query text, the per-check options, and
// the thresholds version. Bumping thresholds rotates every key.
func Key(text string, opts detector.Options, thresholdsVersion int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%g|%d|%d|%d", text, opts.MinSimilarity, opts.ChunkSize, opts.MaxResults, thresholdsVersion)
	return keyPrefix + hex.EncodeToString(h.Sum(nil))[:16]
}

// GetOrCompute returns the cached report for key, or runs compute and caches
// its result. Cache failures degrade to a direct compute.
func (c *ReportCache) GetOrCompute(ctx context.Context, key string, compute func() (*detector.Report, error)) (*detector.Report, error) {
	if c == nil || c.rdb == nil {
		return compute()
	}
	if report, ok := c.lookup(ctx, key); ok {
		return report, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		if report, ok := c.lookup(ctx, key); ok {
			return report, nil
		}
		report, err := compute()
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, report)
		return report, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*detector.Report), nil
}

// Invalidate drops every cached report. Called after any corpus or
// thresholds mutation.
func (c *ReportCache) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	var deleted int64
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("cache invalidation failed", "key", iter.Val(), "error", err)
			return
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("cache invalidation scan failed", "error", err)
		return
	}
	if deleted > 0 {
		c.logger.Debug("cache invalidated", "keys", deleted)
	}
}

// Stats returns cumulative hit and miss counts.
func (c *ReportCache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

// Ping verifies the Redis connection is alive.
func (c *ReportCache) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (c *ReportCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *ReportCache) lookup(ctx context.Context, key string) (*detector.Report, bool) {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", "error", err)
		}
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.Inc()
		}
		return nil, false
	}
	var report detector.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		c.logger.Warn("dropping undecodable cache entry", "key", key, "error", err)
		c.rdb.Del(ctx, key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &report, true
}

func (c *ReportCache) store(ctx context.Context, key string, report *detector.Report) {
	raw, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("cache encode failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "error", err)
	}
}
