// Package config loads engine settings from .env, the environment and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	AI          AIConfig         `mapstructure:"ai"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Queue       QueueConfig      `mapstructure:"queue"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Reference   ReferenceConfig  `mapstructure:"reference"`
	Matching    MatchingConfig   `mapstructure:"matching"`
	Batch       BatchConfig      `mapstructure:"batch"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
}

type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// OpenRouterConfig configures the AI backend. AI detection is off without an APIKey.
type OpenRouterConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	MaxTokens  int           `mapstructure:"max_tokens"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type AIConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	MaxSize int `mapstructure:"max_size"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ReferenceConfig points at reference data files. An empty AllergenDBPath
// uses the built-in allergen database.
type ReferenceConfig struct {
	AllergenDBPath  string `mapstructure:"allergen_db_path"`
	CatalogSeedPath string `mapstructure:"catalog_seed_path"`
}

type MatchingConfig struct {
	MapThreshold  int `mapstructure:"map_threshold"`
	RareWordLimit int `mapstructure:"rare_word_limit"`
	DBConfidence  int `mapstructure:"db_confidence"`
}

type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// AIEnabled reports whether AI calls should be made.
func (c *Config) AIEnabled() bool {
	return c.AI.Enabled && c.OpenRouter.APIKey != ""
}

// LoadConfig reads .env (when present), APP_* environment variables and the
// well-known variables bound below.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"openrouter.api_key":         "OPENROUTER_API_KEY",
		"openrouter.model":           "OPENROUTER_MODEL",
		"openrouter.base_url":        "OPENROUTER_BASE_URL",
		"openrouter.max_tokens":      "MODEL_MAX_TOKENS",
		"cache.enabled":              "CACHE_ENABLED",
		"cache.backend":              "CACHE_BACKEND",
		"cache.redis_addr":           "REDIS_ADDR",
		"rate_limit.enabled":         "RATE_LIMIT_ENABLED",
		"rate_limit.requests":        "RATE_LIMIT_REQUESTS",
		"rate_limit.window":          "RATE_LIMIT_WINDOW",
		"storage.driver":             "STORAGE_DRIVER",
		"storage.dsn":                "DATABASE_URL",
		"reference.allergen_db_path": "ALLERGEN_DB_PATH",
		"dedup_window":               "DEDUP_WINDOW",
		"log_level":                  "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// MaskAPIKey keeps the first and last four characters of key.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "allergen-engine")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "anthropic/claude-3.5-sonnet")
	v.SetDefault("openrouter.max_tokens", 2000)
	v.SetDefault("openrouter.timeout", "60s")
	v.SetDefault("openrouter.max_retries", 2)

	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.requests_per_second", 2)
	v.SetDefault("ai.burst", 4)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")

	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.max_size", 100)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "allergen-engine.db")

	v.SetDefault("reference.allergen_db_path", "")
	v.SetDefault("reference.catalog_seed_path", "")

	v.SetDefault("matching.map_threshold", 65)
	v.SetDefault("matching.rare_word_limit", 5)
	v.SetDefault("matching.db_confidence", 70)

	v.SetDefault("batch.concurrency", 4)

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 {
		return fmt.Errorf("server port is required")
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if cfg.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		switch cfg.Cache.Backend {
		case "memory", "redis":
		default:
			return fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
		}
	}

	switch cfg.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Matching.MapThreshold < 0 || cfg.Matching.MapThreshold > 100 {
		return fmt.Errorf("matching.map_threshold must be within 0..100")
	}
	if cfg.Matching.DBConfidence < 0 || cfg.Matching.DBConfidence > 100 {
		return fmt.Errorf("matching.db_confidence must be within 0..100")
	}
	if cfg.Matching.RareWordLimit < 1 {
		return fmt.Errorf("matching.rare_word_limit must be at least 1")
	}

	if cfg.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if cfg.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}
	if cfg.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1")
	}
	return nil
}
