package cache

import (
	"context"
	"errors"
	"fmt"

	"allergen-engine/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

const defaultKeyPrefix = "ai:completion:"

// RedisStore is a Store shared between engine instances.
type RedisStore struct {
	client *redis.Client
	opts   Options
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to opts.RedisAddr and pings it.
func NewRedisStore(ctx context.Context, opts Options) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return newRedisStore(client, opts), nil
}

func newRedisStore(client *redis.Client, opts Options) *RedisStore {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, opts: opts}
}

// Get returns the cached value for key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.opts.KeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", common.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cache: %w", err)
	}
	return val, nil
}

// Set stores value with the configured TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.opts.KeyPrefix+key, value, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Backend returns "redis".
func (s *RedisStore) Backend() string {
	return BackendRedis
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
