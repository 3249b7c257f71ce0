package repository

import (
	"context"
	"fmt"
	"time"

	"stayflow/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisStateRepository keeps checkout throttle counters and callback
// idempotency markers in redis.
type RedisStateRepository struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisStateRepository(client *redis.Client) *RedisStateRepository {
	return &RedisStateRepository{client: client}
}

// CheckQuota counts one attempt against a fixed window. The first attempt
// opens the window; when the quota is exhausted the remaining window is
// returned as the retry-after hint.
func (r *RedisStateRepository) CheckQuota(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if r.client == nil {
		return false, 0, fmt.Errorf("redis client is nil")
	}

	redisKey := fmt.Sprintf("quota:%s", key)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment quota: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set quota window: %w", err)
		}
	}

	if count > int64(limit) {
		ttl, err := r.client.TTL(ctx, redisKey).Result()
		if err != nil || ttl < 0 {
			ttl = window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}

// MarkProcessed records that a key was seen; returns true only for the first
// caller within the TTL.
func (r *RedisStateRepository) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	redisKey := fmt.Sprintf("processed:%s", key)
	first, err := r.client.SetNX(ctx, redisKey, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark processed: %w", err)
	}
	return first, nil
}
