// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection. DatabaseURL wins over the discrete fields.
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Valkey (Redis-compatible) for the shared rate limiter. Empty host
	// means the in-process limiter is used instead.
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Backend A: OpenAI chat completions (JSON mode) and embeddings.
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	// Backend B: Anthropic Messages API.
	ClaudeKey     string
	ClaudeModel   string
	ClaudeBaseURL string

	// Vector search
	EmbeddingModel      string
	EmbeddingDimensions int

	RateLimitPerMinute int
	CORSOrigin         string
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8000"),
		Env:  envOrDefault("APP_ENV", "development"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:      envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:      envOrDefault("POSTGRES_USER", "verdant"),
		DBPassword:  envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:      envOrDefault("POSTGRES_DB", "verdant"),

		ValkeyHost:     os.Getenv("VALKEY_HOST"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   envOrDefault("OPENAI_MODEL", "gpt-4"),
		OpenAIBaseURL: envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		ClaudeKey:     os.Getenv("ANTHROPIC_API_KEY"),
		ClaudeModel:   envOrDefault("CLAUDE_MODEL", "claude-3-5-sonnet-20241022"),
		ClaudeBaseURL: envOrDefault("CLAUDE_BASE_URL", "https://api.anthropic.com"),

		EmbeddingModel:      envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 1536),

		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSOrigin:         envOrDefault("CORS_ORIGIN", "*"),
	}

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// into the process environment. Variables already set are not overridden.
// A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("no .env file found, relying on process environment", "path", p)
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// UseValkey reports whether a Valkey host is configured.
func (c *Config) UseValkey() bool {
	return c.ValkeyHost != ""
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
