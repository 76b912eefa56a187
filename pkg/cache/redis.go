package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisKeyPrefix namespaces every key written by the Redis tier.
const RedisKeyPrefix = "resource-cache"

// RedisTier is an optional persistent tier backed by Redis. All operations
// fail soft: an unreachable server reads as a miss and writes are dropped.
// Entries are stored without expiry.
type RedisTier struct {
	rdb       *redis.Client
	namespace string
	logger    zerolog.Logger
}

// NewRedisTier creates a Redis tier for the named cache.
func NewRedisTier(rdb *redis.Client, name string, logger zerolog.Logger) *RedisTier {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	return &RedisTier{
		rdb:       rdb,
		namespace: RedisKeyPrefix + ":" + name + ":",
		logger:    logger,
	}
}

// Name implements Tier.
func (r *RedisTier) Name() string { return TierRedis }

// RedisKey returns the Redis key for a cache key.
func (r *RedisTier) RedisKey(key string) string {
	return r.namespace + key
}

// Get implements Tier.
func (r *RedisTier) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.rdb.Get(ctx, r.RedisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			TierErrors.WithLabelValues(TierRedis, "get").Inc()
			r.logger.Error().Err(err).Str("key", key).Msg("Redis get failed")
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Set implements Tier.
func (r *RedisTier) Set(ctx context.Context, key string, data []byte) {
	if err := r.rdb.Set(ctx, r.RedisKey(key), data, 0).Err(); err != nil {
		TierErrors.WithLabelValues(TierRedis, "set").Inc()
		r.logger.Error().Err(err).Str("key", key).Msg("Redis set failed")
	}
}

// Ping checks the Redis connection.
func (r *RedisTier) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
