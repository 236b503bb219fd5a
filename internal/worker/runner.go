// Package worker runs the queue consumers, periodic queue cleanup, broker
// health checks and the ops HTTP server of the serve command.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abdulachik/socialpilot/internal/jobs"
	"github.com/abdulachik/socialpilot/internal/queue"
)

const (
	defaultCleanupInterval = time.Hour
	defaultHealthInterval  = 30 * time.Second
	shutdownTimeout        = 5 * time.Second
)

// Config holds runner configuration.
type Config struct {
	Client          *jobs.Client
	Handlers        *jobs.Handlers
	Concurrency     int
	CleanupInterval time.Duration
	HealthInterval  time.Duration
	// Ops is served while the runner runs. May be nil.
	Ops    *http.Server
	Health *Health
}

// Runner orchestrates the long-running tasks of serve mode.
type Runner struct {
	cfg     Config
	health  *Health
	workers []*queue.Worker
}

// New creates a runner. Serving needs a broker, so a nil client is an error
// here even though enqueueing tolerates one.
func New(cfg Config) (*Runner, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("create worker: %w", jobs.ErrNotConnected)
	}
	if cfg.Handlers == nil {
		return nil, fmt.Errorf("create worker: handlers are required")
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = defaultHealthInterval
	}
	if cfg.Health == nil {
		cfg.Health = NewHealth()
	}

	return &Runner{
		cfg:     cfg,
		health:  cfg.Health,
		workers: cfg.Handlers.Workers(cfg.Client.Queues(), queue.WorkerOptions{Concurrency: cfg.Concurrency}),
	}, nil
}

// Health returns the health tracker.
func (r *Runner) Health() *Health {
	return r.health
}

// Run starts every task and blocks until ctx is cancelled or the ops server
// fails.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("starting worker",
		"queues", len(r.workers),
		"concurrency", r.cfg.Concurrency,
		"cleanup_interval", r.cfg.CleanupInterval,
	)

	r.checkBroker(ctx)
	for _, q := range r.cfg.Client.Queues().All() {
		if _, err := q.RecoverActive(ctx); err != nil {
			slog.Error("failed to recover stalled jobs", "queue", q.Name(), "error", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, w := range r.workers {
		component := "consumer:" + w.Queue().Name()
		g.Go(func() error {
			r.health.SetHealthy(component, "running")
			err := w.Run(ctx)
			r.health.SetUnhealthy(component, errors.New("stopped"))
			return err
		})
	}

	g.Go(func() error {
		r.every(ctx, r.cfg.CleanupInterval, r.cleanup)
		return nil
	})
	g.Go(func() error {
		r.every(ctx, r.cfg.HealthInterval, r.checkBroker)
		return nil
	})

	if srv := r.cfg.Ops; srv != nil {
		g.Go(func() error {
			slog.Info("ops server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	slog.Info("worker shut down")
	return err
}

func (r *Runner) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (r *Runner) cleanup(ctx context.Context) {
	removed := r.cfg.Client.CleanupQueues(ctx)
	total := 0
	for _, n := range removed {
		total += n
	}
	r.health.SetHealthy("cleanup", fmt.Sprintf("removed %d jobs", total))
}

func (r *Runner) checkBroker(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	err := r.cfg.Client.Ping(pingCtx)
	if err != nil && ctx.Err() == nil {
		slog.Warn("broker health check failed", "error", err)
	}
	if ctx.Err() == nil {
		r.health.Record("broker", err, "reachable")
	}
}
