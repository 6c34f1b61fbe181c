package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
)

// CacheConfig contains Redis outcome cache configuration
type CacheConfig struct {
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// CacheStats reports outcome cache effectiveness
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// CachedEngine memoizes outcomes of an inner engine in Redis. Identical jobs
// always produce identical outcomes, so the job document is the cache key.
type CachedEngine struct {
	inner  anonymizer.Engine
	client *redis.Client
	config *CacheConfig
	logger *zap.Logger

	hits   int64
	misses int64
	errors int64
}

// NewCachedEngine connects to Redis and wraps inner
func NewCachedEngine(inner anonymizer.Engine, config *CacheConfig, logger *zap.Logger) (*CachedEngine, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	cache := newCachedEngine(inner, redis.NewClient(opts), config, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Outcome cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

func newCachedEngine(inner anonymizer.Engine, client *redis.Client, config *CacheConfig, logger *zap.Logger) *CachedEngine {
	return &CachedEngine{
		inner:  inner,
		client: client,
		config: config,
		logger: logger,
	}
}

// Solve returns a cached outcome when one exists. Redis failures fall back
// to the inner engine; engine errors are never cached.
func (c *CachedEngine) Solve(ctx context.Context, job *anonymizer.Job) (*anonymizer.Outcome, error) {
	key, err := c.jobKey(job)
	if err != nil {
		return nil, err
	}

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var w wireOutcome
		if err := json.Unmarshal(cached, &w); err == nil {
			atomic.AddInt64(&c.hits, 1)
			c.logger.Debug("Outcome cache hit", zap.String("key", key))
			return decodeOutcome(&w), nil
		}
		c.logger.Warn("Dropping corrupted cache entry", zap.String("key", key))
		c.client.Del(ctx, key)
		atomic.AddInt64(&c.misses, 1)
	case err == redis.Nil:
		atomic.AddInt64(&c.misses, 1)
	default:
		atomic.AddInt64(&c.errors, 1)
		c.logger.Warn("Outcome cache lookup failed", zap.Error(err))
	}

	outcome, err := c.inner.Solve(ctx, job)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(wireOutcome{OptimumFound: outcome.OptimumFound, Rows: outcome.Rows})
	if err != nil {
		c.logger.Warn("Failed to marshal outcome for caching", zap.Error(err))
		return outcome, nil
	}
	if err := c.client.Set(ctx, key, data, c.config.DefaultTTL).Err(); err != nil {
		atomic.AddInt64(&c.errors, 1)
		c.logger.Warn("Failed to cache outcome", zap.Error(err))
	}

	return outcome, nil
}

// Stats returns cache statistics
func (c *CachedEngine) Stats() CacheStats {
	stats := CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
		Errors: atomic.LoadInt64(&c.errors),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// Clear removes every cached outcome under the configured prefix
func (c *CachedEngine) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.config.KeyPrefix+":outcome:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	// Delete keys in batches
	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	c.logger.Info("Outcome cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (c *CachedEngine) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// jobKey hashes the canonical wire form of the job
func (c *CachedEngine) jobKey(job *anonymizer.Job) (string, error) {
	w, err := encodeJob(job)
	if err != nil {
		return "", fmt.Errorf("failed to encode job: %w", err)
	}
	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:outcome:%s", c.config.KeyPrefix, hex.EncodeToString(sum[:])), nil
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at == -1 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	if colon == -1 || strings.HasPrefix(userPart[colon:], "://") {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
