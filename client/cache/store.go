package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a requested record is absent.
var ErrNotFound = errors.New("record not found")

// KV is the minimal hash-addressed contract the ledger cache needs from its
// storage backend. Keeping it narrow decouples the cache from a concrete
// Redis client and lets tests run against an in-memory map.
type KV interface {
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
}

// RedisKV adapts a Redis client to the KV contract.
type RedisKV struct {
	Client *redis.Client
}

func (s *RedisKV) HSet(ctx context.Context, key, field, value string) error {
	return s.Client.HSet(ctx, key, field, value).Err()
}

func (s *RedisKV) HGet(ctx context.Context, key, field string) (string, error) {
	val, err := s.Client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisKV) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.Client.HGetAll(ctx, key).Result()
}

func (s *RedisKV) HDel(ctx context.Context, key string, fields ...string) error {
	return s.Client.HDel(ctx, key, fields...).Err()
}
