package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env and restore after test
	origEnv := os.Environ()
	t.Cleanup(func() {
		os.Clearenv()
		for _, e := range origEnv {
			for i := 0; i < len(e); i++ {
				if e[i] == '=' {
					os.Setenv(e[:i], e[i+1:])
					break
				}
			}
		}
	})

	t.Run("defaults", func(t *testing.T) {
		os.Clearenv()
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "data/socialpilot.db", cfg.DatabasePath)
		assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
		assert.Equal(t, "socialpilot", cfg.QueuePrefix)
		assert.Equal(t, time.Second, cfg.BrokerTimeout)
		assert.Equal(t, time.Hour, cfg.AnalyticsDelay)
		assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, 4, cfg.WorkerConcurrency)
		assert.Equal(t, ":9090", cfg.OpsAddr)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("custom values", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("DATABASE_PATH", "/custom/path.db")
		os.Setenv("ANTHROPIC_API_KEY", "sk-test")
		os.Setenv("REDIS_URL", "redis://cache:6380/2")
		os.Setenv("ANALYTICS_DELAY", "30m")
		os.Setenv("WORKER_CONCURRENCY", "8")
		os.Setenv("TWITTER_CLIENT_ID", "client")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "/custom/path.db", cfg.DatabasePath)
		assert.Equal(t, "sk-test", cfg.AnthropicAPIKey)
		assert.Equal(t, "redis://cache:6380/2", cfg.RedisURL)
		assert.Equal(t, 30*time.Minute, cfg.AnalyticsDelay)
		assert.Equal(t, 8, cfg.WorkerConcurrency)
		assert.Equal(t, "client", cfg.TwitterClientID)
	})

	t.Run("invalid duration", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("BROKER_TIMEOUT", "invalid")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "BROKER_TIMEOUT")
	})

	t.Run("invalid integer", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("WORKER_CONCURRENCY", "notanumber")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "WORKER_CONCURRENCY")
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := &Config{DatabasePath: "test.db"}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing database path", func(t *testing.T) {
		cfg := &Config{}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_PATH")
	})
}

func TestConfig_ValidateForGeneration(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := &Config{
			DatabasePath:    "test.db",
			AnthropicAPIKey: "sk-test",
		}
		assert.NoError(t, cfg.ValidateForGeneration())
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := &Config{DatabasePath: "test.db"}
		err := cfg.ValidateForGeneration()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
	})
}

func TestConfig_ValidateForServe(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabasePath:      "test.db",
			RedisURL:          "redis://localhost:6379/0",
			BrokerTimeout:     time.Second,
			WorkerConcurrency: 2,
			OpsAddr:           ":9090",
		}
	}

	t.Run("valid without anthropic key", func(t *testing.T) {
		assert.NoError(t, valid().ValidateForServe())
	})

	t.Run("missing redis url", func(t *testing.T) {
		cfg := valid()
		cfg.RedisURL = ""
		err := cfg.ValidateForServe()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "REDIS_URL")
	})

	t.Run("zero broker timeout", func(t *testing.T) {
		cfg := valid()
		cfg.BrokerTimeout = 0
		err := cfg.ValidateForServe()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "BROKER_TIMEOUT")
	})

	t.Run("zero concurrency", func(t *testing.T) {
		cfg := valid()
		cfg.WorkerConcurrency = 0
		err := cfg.ValidateForServe()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "WORKER_CONCURRENCY")
	})
}
