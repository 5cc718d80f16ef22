package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the test so no .env from the repo is picked up.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 65, cfg.Matching.MapThreshold)
	assert.Equal(t, 5, cfg.Matching.RareWordLimit)
	assert.Equal(t, 70, cfg.Matching.DBConfidence)
	assert.Equal(t, time.Second, cfg.DedupWindow)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoadConfigEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "sk-or-123456789")
	t.Setenv("APP_SERVER_PORT", "9090")
	t.Setenv("APP_MATCHING_MAP_THRESHOLD", "80")
	t.Setenv("DEDUP_WINDOW", "3s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 80, cfg.Matching.MapThreshold)
	assert.Equal(t, 3*time.Second, cfg.DedupWindow)
	assert.True(t, cfg.AIEnabled())
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Cache:    CacheConfig{Enabled: true, Backend: "memory", MaxSize: 10, TTL: time.Minute},
			Storage:  StorageConfig{Driver: "sqlite"},
			Matching: MatchingConfig{MapThreshold: 65, RareWordLimit: 5, DBConfidence: 70},
			Queue:    QueueConfig{Workers: 1, MaxSize: 1},
			Batch:    BatchConfig{Concurrency: 1},
		}
	}
	require.NoError(t, validateConfig(valid()))

	tests := map[string]func(*Config){
		"port":            func(c *Config) { c.Server.Port = 0 },
		"cache size":      func(c *Config) { c.Cache.MaxSize = 0 },
		"cache ttl":       func(c *Config) { c.Cache.TTL = 0 },
		"cache backend":   func(c *Config) { c.Cache.Backend = "memcached" },
		"storage driver":  func(c *Config) { c.Storage.Driver = "mysql" },
		"map threshold":   func(c *Config) { c.Matching.MapThreshold = 101 },
		"db confidence":   func(c *Config) { c.Matching.DBConfidence = -1 },
		"rare word limit": func(c *Config) { c.Matching.RareWordLimit = 0 },
		"queue workers":   func(c *Config) { c.Queue.Workers = 0 },
		"queue size":      func(c *Config) { c.Queue.MaxSize = 0 },
		"batch":           func(c *Config) { c.Batch.Concurrency = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, validateConfig(c))
		})
	}

	disabled := valid()
	disabled.Cache = CacheConfig{Enabled: false}
	assert.NoError(t, validateConfig(disabled), "cache settings are ignored when disabled")
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", MaskAPIKey("short"))
	assert.Equal(t, "sk-o...6789", MaskAPIKey("sk-or-123456789"))
}
