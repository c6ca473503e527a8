package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "leadsearch:stats:"

// CacheConfig configures the statistics cache
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// NewCacheConfig reads REDIS_URL and STATS_CACHE_TTL. An empty URL disables caching.
func NewCacheConfig() (*CacheConfig, error) {
	ttl := 6 * time.Hour
	if raw := os.Getenv("STATS_CACHE_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid STATS_CACHE_TTL: %w", err)
		}
		ttl = parsed
	}
	return &CacheConfig{
		RedisURL: os.Getenv("REDIS_URL"),
		TTL:      ttl,
	}, nil
}

// Enabled reports whether a Redis URL is configured
func (c *CacheConfig) Enabled() bool {
	return c.RedisURL != ""
}

// NewRedisClient parses url and verifies the server answers a ping
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// CachedProvider wraps a SearchProvider with a read-through Redis cache for
// channel and video statistics. Searches are never cached. Redis failures
// are logged and treated as misses.
type CachedProvider struct {
	next   SearchProvider
	redis  goredis.UniversalClient
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedProvider(next SearchProvider, redis goredis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *CachedProvider {
	return &CachedProvider{
		next:   next,
		redis:  redis,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CachedProvider) SearchVideos(ctx context.Context, credential string, req SearchRequest) ([]Candidate, error) {
	return c.next.SearchVideos(ctx, credential, req)
}

func (c *CachedProvider) ValidateCredential(ctx context.Context, credential string) error {
	return c.next.ValidateCredential(ctx, credential)
}

func (c *CachedProvider) ChannelStatistics(ctx context.Context, credential string, ids []string) (map[string]ChannelStats, error) {
	return cachedLookup(ctx, c, "channel", ids, func(missing []string) (map[string]ChannelStats, error) {
		return c.next.ChannelStatistics(ctx, credential, missing)
	})
}

func (c *CachedProvider) VideoStatistics(ctx context.Context, credential string, ids []string) (map[string]VideoStats, error) {
	return cachedLookup(ctx, c, "video", ids, func(missing []string) (map[string]VideoStats, error) {
		return c.next.VideoStatistics(ctx, credential, missing)
	})
}

func cachedLookup[T any](ctx context.Context, c *CachedProvider, kind string, ids []string, fetch func([]string) (map[string]T, error)) (map[string]T, error) {
	ids = UniqueIDs(ids)
	result := make(map[string]T, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + kind + ":" + id
	}

	missing := ids
	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.WithError(err).WithField("kind", kind).Warn("Stats cache read failed, falling back to provider")
	} else {
		missing = missing[:0:0]
		for i, raw := range values {
			s, ok := raw.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			var v T
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			result[ids[i]] = v
		}
	}

	if len(missing) == 0 {
		c.logger.WithFields(logrus.Fields{"kind": kind, "hits": len(ids)}).Debug("Stats served from cache")
		return result, nil
	}

	fetched, err := fetch(missing)
	if err != nil {
		return nil, err
	}

	pipe := c.redis.Pipeline()
	for id, v := range fetched {
		result[id] = v
		encoded, err := json.Marshal(v)
		if err != nil {
			continue
		}
		pipe.Set(ctx, keyPrefix+kind+":"+id, encoded, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		c.logger.WithError(err).WithField("kind", kind).Warn("Stats cache write failed")
	}

	c.logger.WithFields(logrus.Fields{
		"kind":   kind,
		"hits":   len(ids) - len(missing),
		"misses": len(missing),
	}).Debug("Stats lookup completed")
	return result, nil
}
