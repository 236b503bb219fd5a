package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Database
	DatabasePath string

	// Queue broker
	RedisURL      string
	QueuePrefix   string
	BrokerTimeout time.Duration // connect and command timeout for the broker (default: 1s)

	// Worker settings
	WorkerConcurrency int
	AnalyticsDelay    time.Duration // delay between a publish and its analytics collection (default: 1h)
	CleanupInterval   time.Duration
	OpsAddr           string

	// Platform API access
	HTTPTimeout         time.Duration
	FacebookAppID       string
	FacebookAppSecret   string
	TwitterClientID     string
	TwitterClientSecret string

	// Anthropic API
	AnthropicAPIKey string
	AnthropicModel  string

	// Logging
	LogLevel  string
	LogFormat string

	// Notification settings
	NotifyWebhookURL string
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:        getEnv("DATABASE_PATH", "data/socialpilot.db"),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		QueuePrefix:         getEnv("QUEUE_PREFIX", "socialpilot"),
		OpsAddr:             getEnv("OPS_ADDR", ":9090"),
		FacebookAppID:       getEnv("FACEBOOK_APP_ID", ""),
		FacebookAppSecret:   getEnv("FACEBOOK_APP_SECRET", ""),
		TwitterClientID:     getEnv("TWITTER_CLIENT_ID", ""),
		TwitterClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
		AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:      getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		NotifyWebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
	}

	// Parse durations
	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"BROKER_TIMEOUT", "1s", &cfg.BrokerTimeout},
		{"ANALYTICS_DELAY", "1h", &cfg.AnalyticsDelay},
		{"CLEANUP_INTERVAL", "1h", &cfg.CleanupInterval},
		{"HTTP_TIMEOUT", "30s", &cfg.HTTPTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dest = v
	}

	// Parse integers
	concurrency, err := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}
	cfg.WorkerConcurrency = concurrency

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

// ValidateForQueue checks configuration needed to reach the broker.
func (c *Config) ValidateForQueue() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.BrokerTimeout <= 0 {
		return fmt.Errorf("BROKER_TIMEOUT must be positive")
	}
	return nil
}

// ValidateForGeneration checks configuration needed for AI content generation.
func (c *Config) ValidateForGeneration() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required for generation")
	}
	return nil
}

// ValidateForServe checks all configuration needed for serve mode.
// Generation stays optional; the ai-generation consumer is skipped without a key.
func (c *Config) ValidateForServe() error {
	if err := c.ValidateForQueue(); err != nil {
		return err
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.OpsAddr == "" {
		return fmt.Errorf("OPS_ADDR is required for serve")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
