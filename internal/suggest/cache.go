package suggest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "seo-pinger:suggest:"
	// DefaultCacheTTL is how long a suggestion list is reused.
	DefaultCacheTTL = 24 * time.Hour
)

// CachedSuggester serves repeated lookups for a URL from Redis. Redis errors
// are logged and bypassed.
type CachedSuggester struct {
	next   Suggester
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewCached wraps next with a Redis cache.
func NewCached(next Suggester, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedSuggester {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSuggester{next: next, redis: client, ttl: ttl, logger: log}
}

// CacheKey returns the Redis key for targetURL.
func CacheKey(targetURL string) string {
	sum := sha256.Sum256([]byte(targetURL))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Suggest implements Suggester. Only entries that pass Endpoint.Problem are
// cached, and nothing is cached when none do.
func (c *CachedSuggester) Suggest(ctx context.Context, targetURL string) ([]domain.Endpoint, error) {
	key := CacheKey(targetURL)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []domain.Endpoint
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			c.logger.Debug("Suggestion cache hit", logger.String("url", targetURL))
			return cached, nil
		}
		c.logger.Warn("Discarding unreadable suggestion cache entry", logger.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("Suggestion cache read failed", logger.Error(err))
	}

	endpoints, err := c.next.Suggest(ctx, targetURL)
	if err != nil {
		return endpoints, err
	}

	// unusable entries are not worth a day in the cache
	usable := make([]domain.Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if e.Problem() == "" {
			usable = append(usable, e)
		}
	}
	if len(usable) == 0 {
		return endpoints, nil
	}

	encoded, err := json.Marshal(usable)
	if err != nil {
		return endpoints, nil
	}
	if setErr := c.redis.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
		c.logger.Warn("Suggestion cache write failed", logger.Error(setErr))
	}
	return endpoints, nil
}
