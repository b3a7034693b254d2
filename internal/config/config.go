// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all client configuration
type Config struct {
	// Platform endpoints
	APIBaseURL string
	PushURL    string

	// Session
	SessionToken string

	// Environment: "development" or "production"
	Environment string

	// History
	PageSize int

	// Push channel
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration

	// Typing indicators
	TypingSuppressFor time.Duration
	TypingExpiry      time.Duration

	// REST
	HTTPTimeout time.Duration

	// Local observability endpoint (health + metrics); empty disables it
	MetricsAddr string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		APIBaseURL:   getEnv("CHAT_API_BASE_URL", "http://localhost:8000/api/v1"),
		PushURL:      getEnv("CHAT_PUSH_URL", "ws://localhost:8000/api/v1/ws"),
		SessionToken: getEnv("CHAT_SESSION_TOKEN", ""),
		Environment:  getEnv("ENVIRONMENT", "development"),

		PageSize: getEnvInt("CHAT_PAGE_SIZE", 50),

		ReconnectDelay:   getEnvDuration("CHAT_RECONNECT_DELAY", "3s"),
		HandshakeTimeout: getEnvDuration("CHAT_HANDSHAKE_TIMEOUT", "10s"),

		TypingSuppressFor: getEnvDuration("CHAT_TYPING_SUPPRESS", "2s"),
		TypingExpiry:      getEnvDuration("CHAT_TYPING_EXPIRY", "3s"),

		HTTPTimeout: getEnvDuration("CHAT_HTTP_TIMEOUT", "15s"),

		MetricsAddr: getEnv("CHAT_METRICS_ADDR", "127.0.0.1:9108"),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.SessionToken == "" {
		return fmt.Errorf("session token is required (CHAT_SESSION_TOKEN)")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}
	if c.PushURL == "" {
		return fmt.Errorf("push channel URL is required")
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("page size must be between 1 and 100")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	if c.TypingSuppressFor <= 0 || c.TypingExpiry <= 0 {
		return fmt.Errorf("typing durations must be positive")
	}
	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment with a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
