// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Database (store backend, read-only for sync; owns the vector index)
	DatabaseURL string

	// Embedding index
	EmbeddingModel     string
	EmbeddingEndpoint  string
	EmbeddingDimension int
	SyncBatchSize      int

	// Sync cadence
	SyncInterval     time.Duration
	FreshnessTick    time.Duration
	SyncMaxAttempts  int
	SyncRetryBackoff time.Duration

	// Language model backends
	OllamaURL        string
	OllamaModel      string
	HuggingFaceURL   string
	HuggingFaceToken string
	HuggingFaceModel string
	AnthropicAPIKey  string
	DefaultProvider  string
	ChatTimeout      time.Duration

	// Query cache
	CacheTTL time.Duration

	// NATS settings
	NATSURL   string
	NATSToken string

	// JWT settings
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/vstock?sslmode=disable"),

		// Embedding index
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingEndpoint:  getEnv("EMBEDDING_ENDPOINT", "http://localhost:11434/v1"),
		EmbeddingDimension: getIntEnv("EMBEDDING_DIMENSION", 768),
		SyncBatchSize:      getIntEnv("SYNC_BATCH_SIZE", 50),

		// Sync cadence
		SyncInterval:     getDurationEnv("SYNC_INTERVAL", 30*time.Minute),
		FreshnessTick:    getDurationEnv("FRESHNESS_TICK", 5*time.Minute),
		SyncMaxAttempts:  getIntEnv("SYNC_MAX_ATTEMPTS", 3),
		SyncRetryBackoff: getDurationEnv("SYNC_RETRY_BACKOFF", 2*time.Second),

		// Language model backends
		OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434/v1"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llama3.1"),
		HuggingFaceURL:   getEnv("HUGGINGFACE_URL", "https://api-inference.huggingface.co"),
		HuggingFaceToken: getEnv("HUGGINGFACE_TOKEN", ""),
		HuggingFaceModel: getEnv("HUGGINGFACE_MODEL", "mistralai/Mistral-7B-Instruct-v0.3"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		DefaultProvider:  getEnv("DEFAULT_PROVIDER", "ollama"),
		ChatTimeout:      getDurationEnv("CHAT_TIMEOUT", 60*time.Second),

		// Query cache
		CacheTTL: getDurationEnv("CACHE_TTL", 5*time.Minute),

		// NATS
		NATSURL:   getEnv("NATS_URL", "nats://localhost:4222"),
		NATSToken: getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
