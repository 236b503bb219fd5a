package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abdulachik/socialpilot/internal/metrics"
)

// Handler processes one job. Returning an error schedules a retry while
// attempts remain, unless the error is marked with Permanent.
type Handler func(ctx context.Context, job *Job) error

// FailedHook is called once a job has failed for good.
type FailedHook func(ctx context.Context, job *Job, err error)

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	Concurrency int
	// PollTimeout bounds each blocking fetch so delayed jobs get promoted.
	PollTimeout time.Duration
	// ErrorDelay is the pause after a broker error.
	ErrorDelay time.Duration
	OnFailed   FailedHook
}

// Worker consumes one queue.
type Worker struct {
	queue   *Queue
	handler Handler
	opts    WorkerOptions
}

// NewWorker creates a worker for q.
func NewWorker(q *Queue, handler Handler, opts WorkerOptions) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = time.Second
	}
	if opts.ErrorDelay <= 0 {
		opts.ErrorDelay = time.Second
	}
	return &Worker{queue: q, handler: handler, opts: opts}
}

// Queue returns the queue w consumes.
func (w *Worker) Queue() *Queue {
	return w.queue
}

// Run consumes jobs until ctx is cancelled. Broker errors are logged and
// retried; Run only returns once every consumer has stopped.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("queue worker started", "queue", w.queue.name, "concurrency", w.opts.Concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for range w.opts.Concurrency {
		g.Go(func() error {
			w.loop(ctx)
			return nil
		})
	}
	err := g.Wait()

	slog.Info("queue worker stopped", "queue", w.queue.name)
	return err
}

func (w *Worker) loop(ctx context.Context) {
	for ctx.Err() == nil {
		if _, err := w.ProcessNext(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("queue poll failed", "queue", w.queue.name, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(w.opts.ErrorDelay):
			}
		}
	}
}

// ProcessNext promotes due delayed jobs, waits up to PollTimeout for one job
// and runs it. It reports whether a job was handled.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	if _, err := w.queue.promote(ctx); err != nil {
		return false, err
	}

	id, err := w.queue.fetch(ctx, w.opts.PollTimeout)
	if err != nil {
		return false, fmt.Errorf("fetch %s job: %w", w.queue.name, err)
	}
	if id == "" {
		return false, nil
	}

	return true, w.process(ctx, id)
}

func (w *Worker) process(ctx context.Context, id string) error {
	q := w.queue
	// Bookkeeping must finish even when the worker is being stopped.
	bg := context.WithoutCancel(ctx)

	job, err := q.GetJob(bg, id)
	if errors.Is(err, ErrJobNotFound) {
		slog.Warn("dropping job without record", "queue", q.name, "job_id", id)
		_, err = q.call(bg, func() (any, error) {
			return q.rdb.LRem(bg, q.keys.active, 1, id).Result()
		})
		return err
	}
	if err != nil {
		return err
	}

	now := q.now()
	job.AttemptsMade++
	job.State = StateActive
	job.ProcessedAt = &now
	if err := q.save(bg, job); err != nil {
		return err
	}

	start := time.Now()
	runErr := w.run(ctx, job)
	metrics.JobDuration.WithLabelValues(q.name).Observe(time.Since(start).Seconds())

	switch {
	case runErr == nil:
		metrics.JobsProcessed.WithLabelValues(q.name, "completed").Inc()
		slog.Info("job completed", "queue", q.name, "job_id", job.ID, "attempt", job.AttemptsMade)
		return q.complete(bg, job)

	case ctx.Err() != nil:
		metrics.JobsProcessed.WithLabelValues(q.name, "interrupted").Inc()
		slog.Warn("job interrupted by shutdown, requeueing", "queue", q.name, "job_id", job.ID)
		return q.requeue(bg, job)

	case IsPermanent(runErr) || job.AttemptsMade >= job.Attempts:
		metrics.JobsProcessed.WithLabelValues(q.name, "failed").Inc()
		slog.Error("job failed",
			"queue", q.name,
			"job_id", job.ID,
			"attempts", job.AttemptsMade,
			"permanent", IsPermanent(runErr),
			"error", runErr,
		)
		if err := q.fail(bg, job, runErr); err != nil {
			return err
		}
		if w.opts.OnFailed != nil {
			w.opts.OnFailed(bg, job, runErr)
		}
		return nil

	default:
		delay := job.Backoff.Next(job.AttemptsMade)
		metrics.JobsProcessed.WithLabelValues(q.name, "retried").Inc()
		slog.Warn("job failed, retrying",
			"queue", q.name,
			"job_id", job.ID,
			"attempt", job.AttemptsMade,
			"of", job.Attempts,
			"retry_in", delay,
			"error", runErr,
		)
		return q.retry(bg, job, runErr, delay)
	}
}

// run calls the handler, turning a panic into a permanent failure.
func (w *Worker) run(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return w.handler(ctx, job)
}
