package conf

import (
	"os"
	"strconv"
	"time"
)

// Config represents application configuration
type Config struct {
	// Misskey instance configuration
	Misskey MisskeyConfig

	// Renderer service configuration
	Renderer RendererConfig

	// Valkey (Redis-compatible) store configuration
	Valkey ValkeyConfig

	// OpenAI planner configuration
	OpenAI OpenAIConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// HTTP server configuration
	Server ServerConfig

	// Conversation state time-to-live
	StateTTLSeconds int
}

// MisskeyConfig contains Misskey instance configuration
type MisskeyConfig struct {
	Host  string // instance host, e.g. misskey.example.com
	Token string // API token with admin privileges
}

// RendererConfig contains renderer service configuration
type RendererConfig struct {
	BaseURL string
}

// ValkeyConfig contains Valkey configuration
type ValkeyConfig struct {
	Host     string
	Port     int
	Password string
}

// OpenAIConfig contains OpenAI configuration
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// RateLimitConfig contains per-user rate limit configuration
type RateLimitConfig struct {
	MaxRequests   int
	WindowSeconds int
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port     int
	LogLevel string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		Misskey: MisskeyConfig{
			Host:  os.Getenv("MISSKEY_HOST"),
			Token: os.Getenv("MISSKEY_TOKEN"),
		},
		Renderer: RendererConfig{
			BaseURL: os.Getenv("RENDERER_BASE_URL"),
		},
		Valkey: ValkeyConfig{
			Host:     envString("VALKEY_HOST", "localhost"),
			Port:     envInt("VALKEY_PORT", 6379),
			Password: os.Getenv("VALKEY_PASSWORD"),
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  envString("OPENAI_MODEL", "gpt-5-mini-2025-08-07"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   envInt("RATE_LIMIT_MAX_REQUESTS", 10),
			WindowSeconds: envInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Server: ServerConfig{
			Port:     envInt("PORT", 3000),
			LogLevel: envString("LOG_LEVEL", "info"),
		},
		StateTTLSeconds: envInt("STATE_TTL_SECONDS", 600),
	}
}

// StateTTL returns the conversation state TTL as a duration
func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.StateTTLSeconds) * time.Second
}

// RateLimitWindow returns the rate limit window as a duration
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Misskey.Host == "" || c.Misskey.Token == "" {
		return &ConfigError{Field: "MISSKEY_HOST/MISSKEY_TOKEN", Message: "required"}
	}
	if c.Renderer.BaseURL == "" {
		return &ConfigError{Field: "RENDERER_BASE_URL", Message: "required"}
	}
	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if c.RateLimit.MaxRequests <= 0 {
		return &ConfigError{Field: "RATE_LIMIT_MAX_REQUESTS", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}
