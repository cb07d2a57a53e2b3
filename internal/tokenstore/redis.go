package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is the expiring, cookie-like surface.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend wraps a go-redis client. Keys are namespaced by prefix.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	if r == nil || r.client == nil {
		return "", ErrUnavailable
	}
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (r *RedisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, r.prefix+key)
	}
	return r.client.Del(ctx, full...).Err()
}
