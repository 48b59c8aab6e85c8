package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig configures the Redis-backed cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	MaxBytes int
}

// Redis stores entries in a Redis server so that every replica sees the
// same invalidations.
type Redis struct {
	client   *redis.Client
	prefix   string
	maxBytes int
}

// NewRedis connects a client. The connection is verified lazily.
func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisWithClient(client, cfg.Prefix, cfg.MaxBytes)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, maxBytes int) *Redis {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxEntryBytes
	}
	return &Redis{client: client, prefix: prefix, maxBytes: maxBytes}
}

func (r *Redis) key(k string) string { return r.prefix + k }

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if len(value) > r.maxBytes {
		return fmt.Errorf("%w: %d bytes for %q", ErrTooLarge, len(value), key)
	}
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Close releases the client.
func (r *Redis) Close() error { return r.client.Close() }
