package app

import (
	"context"
	"log/slog"

	"github.com/abdulachik/socialpilot/internal/config"
	"github.com/abdulachik/socialpilot/internal/db"
	"github.com/abdulachik/socialpilot/internal/generator"
	"github.com/abdulachik/socialpilot/internal/jobs"
	"github.com/abdulachik/socialpilot/internal/notify"
	"github.com/abdulachik/socialpilot/internal/platform"
)

// App is the main application container holding all dependencies.
type App struct {
	Config *config.Config
	Store  *db.Store
	// Jobs is nil when the broker is unreachable. Enqueues on it are no-ops.
	Jobs *jobs.Client
	// Generator is nil when no Anthropic API key is configured.
	Generator *generator.Generator
	Notifier  notify.Notifier
	Handlers  *jobs.Handlers
}

// New creates a new application instance with all dependencies wired up.
// An unreachable broker is not an error; a broken database is.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	client := jobs.Connect(ctx, jobs.ConnectOptions{
		URL:     cfg.RedisURL,
		Timeout: cfg.BrokerTimeout,
		Prefix:  cfg.QueuePrefix,
	})

	var gen *generator.Generator
	if cfg.AnthropicAPIKey != "" {
		gen = generator.New(generator.NewClaudeClient(generator.ClaudeConfig{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			Timeout: cfg.HTTPTimeout,
		}))
	}

	notifier := NewNotifier(cfg)

	handlers := jobs.NewHandlers(jobs.HandlerConfig{
		Store:          store,
		Client:         client,
		Generator:      gen,
		Notifier:       notifier,
		ClientOptions:  ClientOptions(cfg),
		AnalyticsDelay: cfg.AnalyticsDelay,
	})

	return &App{
		Config:    cfg,
		Store:     store,
		Jobs:      client,
		Generator: gen,
		Notifier:  notifier,
		Handlers:  handlers,
	}, nil
}

// NewNotifier always logs and also posts to the webhook when one is
// configured.
func NewNotifier(cfg *config.Config) notify.Notifier {
	logNotifier := notify.NewLogNotifier(slog.Default())
	if cfg.NotifyWebhookURL == "" {
		return logNotifier
	}
	return notify.Multi{
		logNotifier,
		notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:     cfg.NotifyWebhookURL,
			Timeout: cfg.HTTPTimeout,
		}),
	}
}

// ClientOptions returns the adapter options of each platform: the request
// timeout for all of them plus the app credentials token refresh needs.
func ClientOptions(cfg *config.Config) func(platform.Platform) []platform.ClientOption {
	return func(p platform.Platform) []platform.ClientOption {
		opts := []platform.ClientOption{platform.WithTimeout(cfg.HTTPTimeout)}
		switch p {
		case platform.Facebook:
			if cfg.FacebookAppID != "" {
				opts = append(opts, platform.WithAppCredentials(cfg.FacebookAppID, cfg.FacebookAppSecret))
			}
		case platform.Twitter:
			if cfg.TwitterClientID != "" {
				opts = append(opts, platform.WithAppCredentials(cfg.TwitterClientID, cfg.TwitterClientSecret))
			}
		}
		return opts
	}
}

// Close closes all resources.
func (a *App) Close() error {
	if err := a.Jobs.Close(); err != nil {
		slog.Warn("failed to close broker connection", "error", err)
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
