package reward

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKeyPrefix is the Redis key prefix for reward hashes. The full key
// for an action is DefaultKeyPrefix + actionID, with hash fields "sum" and
// "count".
const DefaultKeyPrefix = "rewards:"

// RedisStore persists reward accumulations in Redis hashes. Increments use
// HINCRBYFLOAT/HINCRBY, so concurrent updates from multiple processes do
// not lose writes.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStore creates a Redis-backed reward store on an existing client.
// An empty keyPrefix uses DefaultKeyPrefix.
func NewRedisStore(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger.With(zap.String("component", "reward_store_redis")),
	}
}

func (s *RedisStore) key(actionID string) string {
	return s.keyPrefix + actionID
}

// Record applies the increment atomically in Redis.
func (s *RedisStore) Record(ctx context.Context, actionID string, value float64) error {
	key := s.key(actionID)

	pipe := s.client.TxPipeline()
	pipe.HIncrByFloat(ctx, key, "sum", value)
	pipe.HIncrBy(ctx, key, "count", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reward increment failed: %w", err)
	}

	s.logger.Debug("reward recorded",
		zap.String("action_id", actionID),
		zap.Float64("value", value))
	return nil
}

// Stats reads the accumulation back from the Redis hash.
func (s *RedisStore) Stats(ctx context.Context, actionID string) (Stats, error) {
	fields, err := s.client.HGetAll(ctx, s.key(actionID)).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("reward stats read failed: %w", err)
	}

	stats := Stats{ActionID: actionID}
	if raw, ok := fields["sum"]; ok {
		if stats.Sum, err = strconv.ParseFloat(raw, 64); err != nil {
			return Stats{}, fmt.Errorf("corrupt sum for %s: %w", actionID, err)
		}
	}
	if raw, ok := fields["count"]; ok {
		if stats.Count, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return Stats{}, fmt.Errorf("corrupt count for %s: %w", actionID, err)
		}
	}
	return stats, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
