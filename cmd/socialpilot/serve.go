package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/abdulachik/socialpilot/internal/config"
	"github.com/abdulachik/socialpilot/internal/jobs"
	"github.com/abdulachik/socialpilot/internal/metrics"
	"github.com/abdulachik/socialpilot/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the job worker",
	Long: `Run the worker that consumes the post-scheduling, analytics and
ai-generation queues, prunes finished jobs periodically and serves
/healthz and /metrics on OPS_ADDR.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx, (*config.Config).ValidateForServe)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Jobs.Connected() {
		return fmt.Errorf("start worker: %w", jobs.ErrNotConnected)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.MustRegister(reg)

	health := worker.NewHealth()
	runner, err := worker.New(worker.Config{
		Client:          a.Jobs,
		Handlers:        a.Handlers,
		Concurrency:     a.Config.WorkerConcurrency,
		CleanupInterval: a.Config.CleanupInterval,
		Ops:             worker.NewOpsServer(a.Config.OpsAddr, health, reg),
		Health:          health,
	})
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runner.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("worker error: %w", err)
		}
		return nil
	}

	slog.Info("shutting down...")
	cancel()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker error: %w", err)
	}
	return nil
}
