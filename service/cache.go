package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ICacheClient defines the contract for the snapshot cache. The abstraction
// decouples AccountService from a concrete Redis client for testing.
type ICacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisOTPStore adapts a Redis client to the IOTPStore contract.
type RedisOTPStore struct {
	Client *redis.Client
}

func (s *RedisOTPStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.Client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisOTPStore) Get(ctx context.Context, key string) (string, error) {
	return s.Client.Get(ctx, key).Result()
}

func (s *RedisOTPStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.Client.Incr(ctx, key).Result()
}

func (s *RedisOTPStore) Del(ctx context.Context, keys ...string) error {
	return s.Client.Del(ctx, keys...).Err()
}
