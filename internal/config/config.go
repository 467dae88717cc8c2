package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config collects runtime settings from the environment. A local .env file is
// honored when present; real deployments set variables directly.
type Config struct {
	ListenAddr  string
	PostgresDSN string
	RedisAddr   string
	ResetSecret string

	SessionTTL time.Duration
	ClaimTTL   time.Duration
}

// Load reads configuration. Missing optional values fall back to defaults;
// an empty DSN leaves the service running without persistence (health
// endpoints only), matching local development.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:  getEnvOrDefault("ROLLBOOK_LISTEN_ADDR", ":8080"),
		PostgresDSN: os.Getenv("ROLLBOOK_PG_DSN"),
		RedisAddr:   os.Getenv("ROLLBOOK_REDIS_ADDR"),
		ResetSecret: os.Getenv("ROLLBOOK_RESET_SECRET"),
		SessionTTL:  getDurationOrDefault("ROLLBOOK_SESSION_TTL", 14*24*time.Hour),
		ClaimTTL:    getDurationOrDefault("ROLLBOOK_CLAIM_TTL", 5*time.Minute),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
