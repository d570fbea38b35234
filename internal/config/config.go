package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Addr    string // chat listener (websocket)
	OpsAddr string // health/metrics/stats listener
	Env     string

	DatabaseURL string // Postgres directory backend; SQLite is used when empty
	SQLitePath  string
	RedisURL    string // Redis offline-queue backend; in-memory when empty
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Addr:        getEnv("ADDR", ":9190"),
		OpsAddr:     getEnv("OPS_ADDR", ":9191"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/parley.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}

	// In production, require a real directory backend
	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		panic("DATABASE_URL is required in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
