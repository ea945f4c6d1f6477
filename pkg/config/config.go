package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the binaries read from the environment. A local
// .env file is honored when present; real deployments set variables directly.
type Config struct {
	Addr    string
	BaseURL string

	// Storage backend selection. Exactly one backend is active per process.
	DBProvider    string
	DatabaseURL   string
	MongoDatabase string

	// Optional Redis used by the resolve cache and the rate limiter. Blank
	// disables both. Independent of DBProvider=redis, which has its own DSN.
	RedisURL     string
	CacheEnabled bool

	CodeLength int

	LogLevel string

	RateLimitEnabled bool
	RateLimitPerMin  int
	RateLimitWindow  time.Duration
}

func Load() (*Config, error) {
	// Missing .env is fine; env vars win anyway.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:             getEnv("ADDR", ":8080"),
		BaseURL:          getEnv("BASE_URL", ""),
		DBProvider:       getEnv("DB_PROVIDER", "memory"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		MongoDatabase:    getEnv("MONGO_DATABASE", "urlshortener"),
		RedisURL:         getEnv("REDIS_URL", ""),
		CacheEnabled:     getEnvBool("CACHE_ENABLED", true),
		CodeLength:       getEnvInt("CODE_LENGTH", 8),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MIN", 100),
		RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}

	if cfg.DBProvider != "memory" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for provider %q", cfg.DBProvider)
	}
	if cfg.CodeLength < 4 || cfg.CodeLength > 32 {
		return nil, fmt.Errorf("CODE_LENGTH %d out of range [4,32]", cfg.CodeLength)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
