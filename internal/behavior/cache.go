package behavior

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/caregrid/sentinel/internal/domain"
	"github.com/redis/go-redis/v9"
)

const profileKeyPrefix = "behavior_profile:"

// Cache is the optional read-through profile cache. Implementations fail
// open: a cache error is a miss, never a request failure.
type Cache interface {
	Get(ctx context.Context, userID string) (*domain.BehaviorProfile, bool)
	Set(ctx context.Context, profile *domain.BehaviorProfile)
	Invalidate(ctx context.Context, userID string)
}

// RedisCache caches profiles in redis with a short TTL. Every write to a
// profile invalidates its entry; there is no cross-user invalidation.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a profile cache with the given TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, userID string) (*domain.BehaviorProfile, bool) {
	raw, err := c.client.Get(ctx, profileKeyPrefix+userID).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("profile cache read failed", "user_id", userID, "error", err)
		}
		return nil, false
	}
	var p domain.BehaviorProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		c.logger.Warn("profile cache entry corrupt, dropping", "user_id", userID, "error", err)
		c.Invalidate(ctx, userID)
		return nil, false
	}
	return &p, true
}

func (c *RedisCache) Set(ctx context.Context, profile *domain.BehaviorProfile) {
	raw, err := json.Marshal(profile)
	if err != nil {
		c.logger.Warn("profile cache marshal failed", "user_id", profile.UserID, "error", err)
		return
	}
	if err := c.client.Set(ctx, profileKeyPrefix+profile.UserID, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("profile cache write failed", "user_id", profile.UserID, "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, profileKeyPrefix+userID).Err(); err != nil {
		c.logger.Warn("profile cache invalidation failed", "user_id", userID, "error", err)
	}
}
