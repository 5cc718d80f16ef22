// Package cache keeps AI completions so identical prompts are answered once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store is a completion cache. Get returns common.ErrCacheMiss when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Backend() string
	Close() error
}

// Options configures a Store.
type Options struct {
	Backend         string
	MaxSize         int
	TTL             time.Duration
	CleanupInterval time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	KeyPrefix       string
}

// Key derives a cache key from the parts of a request.
func Key(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])
}

// New builds the store named by opts.Backend.
func New(ctx context.Context, opts Options) (Store, error) {
	if opts.Backend == BackendRedis {
		return NewRedisStore(ctx, opts)
	}
	return NewManager(opts), nil
}
