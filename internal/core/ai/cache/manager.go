package cache

import (
	"context"
	"sync"
	"time"

	"allergen-engine/internal/pkg/common"

	"go.uber.org/zap"
)

// CacheManager is an in-process Store with TTL expiry and least-used eviction.
type CacheManager struct {
	opts  Options
	mu    sync.Mutex
	store map[string]cacheEntry
	stats Stats
	done  chan struct{}
	once  sync.Once
}

type cacheEntry struct {
	value       string
	expiresAt   time.Time
	lastAccess  time.Time
	accessCount int
}

// Stats counts cache activity.
type Stats struct {
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

var _ Store = (*CacheManager)(nil)

// NewManager creates a CacheManager. A positive CleanupInterval starts a
// background sweep that stops on Close.
func NewManager(opts Options) *CacheManager {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1000
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	m := &CacheManager{
		opts:  opts,
		store: make(map[string]cacheEntry),
		done:  make(chan struct{}),
	}
	if opts.CleanupInterval > 0 {
		go m.startCleanup(opts.CleanupInterval)
	}

	common.LogInfo("memory cache initialized",
		zap.Int("max_size", opts.MaxSize),
		zap.Duration("ttl", opts.TTL),
		zap.Duration("cleanup_interval", opts.CleanupInterval),
	)
	return m
}

// Get returns the cached value for key.
func (m *CacheManager) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.store[key]
	if !ok {
		m.stats.Misses++
		return "", common.ErrCacheMiss
	}
	now := time.Now()
	if now.After(entry.expiresAt) {
		delete(m.store, key)
		m.stats.Evictions++
		m.stats.Misses++
		return "", common.ErrCacheMiss
	}

	entry.lastAccess = now
	entry.accessCount++
	m.store[key] = entry
	m.stats.Hits++
	return entry.value, nil
}

// Set stores value under key. When full, expired entries go first, then the least used one.
func (m *CacheManager) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[key]; !exists && len(m.store) >= m.opts.MaxSize {
		if m.cleanup() == 0 {
			m.evictLRU()
		}
		if len(m.store) >= m.opts.MaxSize {
			common.LogWarn("cache is full", zap.Int("size", len(m.store)))
			return common.ErrCacheFull
		}
	}

	now := time.Now()
	m.store[key] = cacheEntry{
		value:      value,
		expiresAt:  now.Add(m.opts.TTL),
		lastAccess: now,
	}
	return nil
}

// Backend returns "memory".
func (m *CacheManager) Backend() string {
	return BackendMemory
}

func (m *CacheManager) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			n := m.cleanup()
			m.mu.Unlock()
			if n > 0 {
				common.LogDebug("cleaned up expired cache entries", zap.Int("count", n))
			}
		case <-m.done:
			return
		}
	}
}

// cleanup drops expired entries. Callers hold mu.
func (m *CacheManager) cleanup() int {
	now := time.Now()
	count := 0
	for key, entry := range m.store {
		if now.After(entry.expiresAt) {
			delete(m.store, key)
			count++
		}
	}
	m.stats.Evictions += int64(count)
	return count
}

// evictLRU drops the least accessed entry, oldest access first on ties. Callers hold mu.
func (m *CacheManager) evictLRU() {
	var oldestKey string
	var oldest cacheEntry
	for key, entry := range m.store {
		if oldestKey == "" ||
			entry.accessCount < oldest.accessCount ||
			(entry.accessCount == oldest.accessCount && entry.lastAccess.Before(oldest.lastAccess)) {
			oldestKey = key
			oldest = entry
		}
	}
	if oldestKey != "" {
		delete(m.store, oldestKey)
		m.stats.Evictions++
	}
}

// GetStats returns a snapshot of the counters.
func (m *CacheManager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Size = len(m.store)
	s.MaxSize = m.opts.MaxSize
	return s
}

// Close stops the sweep and empties the cache.
func (m *CacheManager) Close() error {
	m.once.Do(func() { close(m.done) })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = make(map[string]cacheEntry)
	common.LogInfo("memory cache closed",
		zap.Int64("hits", m.stats.Hits),
		zap.Int64("misses", m.stats.Misses),
		zap.Int64("evictions", m.stats.Evictions),
	)
	return nil
}
