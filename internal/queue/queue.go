// Package queue is a Redis-backed delayed job queue with per-queue retry,
// backoff and retention policies. Jobs are deduplicated by id.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/abdulachik/socialpilot/internal/metrics"
)

const (
	defaultPrefix = "socialpilot"
	promoteBatch  = 100
)

type keys struct {
	wait      string
	active    string
	delayed   string
	completed string
	failed    string
	jobPrefix string
}

func newKeys(prefix, name string) keys {
	base := prefix + ":" + name + ":"
	return keys{
		wait:      base + "wait",
		active:    base + "active",
		delayed:   base + "delayed",
		completed: base + "completed",
		failed:    base + "failed",
		jobPrefix: base + "job:",
	}
}

func (k keys) job(id string) string {
	return k.jobPrefix + id
}

func (k keys) finished(state State) (string, bool) {
	switch state {
	case StateCompleted:
		return k.completed, true
	case StateFailed:
		return k.failed, true
	}
	return "", false
}

// Queue is one named queue on a shared broker connection. It is safe for
// concurrent use.
type Queue struct {
	name    string
	prefix  string
	policy  Policy
	rdb     redis.UniversalClient
	keys    keys
	breaker circuitbreaker.CircuitBreaker[any]
	now     func() time.Time
}

// Option customizes a Queue.
type Option func(*Queue)

// WithPrefix sets the key namespace. Defaults to "socialpilot".
func WithPrefix(prefix string) Option {
	return func(q *Queue) { q.prefix = prefix }
}

// WithBreaker routes every broker call through cb.
func WithBreaker(cb circuitbreaker.CircuitBreaker[any]) Option {
	return func(q *Queue) { q.breaker = cb }
}

// WithClock replaces time.Now for scheduling decisions.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates a queue named name.
func New(rdb redis.UniversalClient, name string, policy Policy, opts ...Option) *Queue {
	q := &Queue{
		name:   name,
		prefix: defaultPrefix,
		policy: policy,
		rdb:    rdb,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.keys = newKeys(q.prefix, name)
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Policy returns the queue policy.
func (q *Queue) Policy() Policy {
	return q.policy
}

// call runs fn through the circuit breaker. Every error it returns wraps
// ErrUnavailable.
func (q *Queue) call(ctx context.Context, fn func() (any, error)) (any, error) {
	var (
		out any
		err error
	)
	if q.breaker == nil {
		out, err = fn()
	} else {
		out, err = failsafe.With(q.breaker).WithContext(ctx).Get(fn)
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return out, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return out, err
}

// AddOptions controls a single enqueue.
type AddOptions struct {
	// JobID deduplicates submissions. A random id is used when empty.
	JobID string
	// Delay postpones the first attempt. Negative values are treated as 0.
	Delay time.Duration
}

// Add enqueues a job. When a job with the same id already exists the
// existing job is returned and nothing is scheduled.
func (q *Queue) Add(ctx context.Context, name string, data any, opts AddOptions) (*Job, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", q.name, err)
	}

	id := opts.JobID
	if id == "" {
		id = uuid.NewString()
	}
	delay := max(opts.Delay, 0)
	now := q.now()

	job := &Job{
		ID:        id,
		Queue:     q.name,
		Name:      name,
		Data:      payload,
		Attempts:  q.policy.attempts(),
		Backoff:   q.policy.Backoff,
		Delay:     delay,
		State:     StateWaiting,
		CreatedAt: now,
		ProcessAt: now.Add(delay),
	}
	var processAt int64
	if delay > 0 {
		job.State = StateDelayed
		processAt = job.ProcessAt.UnixMilli()
	}

	record, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal %s job: %w", q.name, err)
	}

	res, err := q.call(ctx, func() (any, error) {
		return addScript.Run(ctx, q.rdb,
			[]string{q.keys.job(id), q.keys.wait, q.keys.delayed},
			record, id, processAt, flag(q.policy.Priority),
		).Int()
	})
	if err != nil {
		return nil, fmt.Errorf("add %s job %s: %w", q.name, id, err)
	}

	if res.(int) == 0 {
		metrics.EnqueueTotal.WithLabelValues(q.name, "duplicate").Inc()
		slog.Debug("job already queued", "queue", q.name, "job_id", id)
		return q.GetJob(ctx, id)
	}

	metrics.EnqueueTotal.WithLabelValues(q.name, "added").Inc()
	slog.Debug("job queued", "queue", q.name, "job_id", id, "delay", delay)
	return job, nil
}

// GetJob loads a job record.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	res, err := q.call(ctx, func() (any, error) {
		return q.rdb.Get(ctx, q.keys.job(id)).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s job %s: %w", q.name, id, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s job %s: %w", q.name, id, err)
	}

	var job Job
	if err := json.Unmarshal(res.([]byte), &job); err != nil {
		return nil, fmt.Errorf("decode %s job %s: %w", q.name, id, err)
	}
	return &job, nil
}

// Counts returns the number of jobs in each state.
func (q *Queue) Counts(ctx context.Context) (map[State]int64, error) {
	var (
		wait, active               *redis.IntCmd
		delayed, completed, failed *redis.IntCmd
	)
	_, err := q.call(ctx, func() (any, error) {
		return q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			wait = p.LLen(ctx, q.keys.wait)
			active = p.LLen(ctx, q.keys.active)
			delayed = p.ZCard(ctx, q.keys.delayed)
			completed = p.ZCard(ctx, q.keys.completed)
			failed = p.ZCard(ctx, q.keys.failed)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("count %s jobs: %w", q.name, err)
	}

	return map[State]int64{
		StateWaiting:   wait.Val(),
		StateActive:    active.Val(),
		StateDelayed:   delayed.Val(),
		StateCompleted: completed.Val(),
		StateFailed:    failed.Val(),
	}, nil
}

// Clean removes completed or failed jobs that finished more than grace ago.
func (q *Queue) Clean(ctx context.Context, grace time.Duration, state State) (int, error) {
	set, ok := q.keys.finished(state)
	if !ok {
		return 0, fmt.Errorf("clean %s: state %q cannot be cleaned", q.name, state)
	}
	cutoff := q.now().Add(-grace).UnixMilli()

	res, err := q.call(ctx, func() (any, error) {
		return cleanScript.Run(ctx, q.rdb, []string{set}, cutoff, q.keys.jobPrefix).Int()
	})
	if err != nil {
		return 0, fmt.Errorf("clean %s %s jobs: %w", q.name, state, err)
	}
	return res.(int), nil
}

// RecoverActive moves jobs left in the active list, by a worker that died
// mid-job, back to the wait list. Call it before starting workers.
func (q *Queue) RecoverActive(ctx context.Context) (int, error) {
	var moved int
	for {
		_, err := q.call(ctx, func() (any, error) {
			return q.rdb.RPopLPush(ctx, q.keys.active, q.keys.wait).Result()
		})
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, fmt.Errorf("recover %s jobs: %w", q.name, err)
		}
		moved++
	}
	if moved > 0 {
		slog.Warn("recovered stalled jobs", "queue", q.name, "count", moved)
	}
	return moved, nil
}

// promote moves due delayed jobs to the wait list.
func (q *Queue) promote(ctx context.Context) (int, error) {
	res, err := q.call(ctx, func() (any, error) {
		return promoteScript.Run(ctx, q.rdb,
			[]string{q.keys.delayed, q.keys.wait},
			q.now().UnixMilli(), promoteBatch, flag(q.policy.Priority),
		).Int()
	})
	if err != nil {
		return 0, fmt.Errorf("promote %s jobs: %w", q.name, err)
	}
	return res.(int), nil
}

// fetch blocks up to timeout for the next job id and moves it to active.
// It returns "" when nothing arrived.
func (q *Queue) fetch(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.call(ctx, func() (any, error) {
		return q.rdb.BRPopLPush(ctx, q.keys.wait, q.keys.active, timeout).Result()
	})
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (q *Queue) save(ctx context.Context, job *Job) error {
	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", q.name, err)
	}
	_, err = q.call(ctx, func() (any, error) {
		return q.rdb.Set(ctx, q.keys.job(job.ID), record, 0).Result()
	})
	return err
}

func (q *Queue) finish(ctx context.Context, job *Job, state State, keep int) error {
	now := q.now()
	job.State = state
	job.FinishedAt = &now

	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", q.name, err)
	}
	set, _ := q.keys.finished(state)

	_, err = q.call(ctx, func() (any, error) {
		return finishScript.Run(ctx, q.rdb,
			[]string{q.keys.active, q.keys.job(job.ID), set},
			job.ID, record, now.UnixMilli(), keep, q.keys.jobPrefix,
		).Int()
	})
	return err
}

func (q *Queue) complete(ctx context.Context, job *Job) error {
	job.FailedReason = ""
	return q.finish(ctx, job, StateCompleted, q.policy.KeepCompleted)
}

func (q *Queue) fail(ctx context.Context, job *Job, cause error) error {
	job.FailedReason = cause.Error()
	return q.finish(ctx, job, StateFailed, q.policy.KeepFailed)
}

// retry schedules the next attempt after delay.
func (q *Queue) retry(ctx context.Context, job *Job, cause error, delay time.Duration) error {
	job.FailedReason = cause.Error()
	job.ProcessAt = q.now().Add(delay)
	job.State = StateDelayed
	if delay <= 0 {
		job.State = StateWaiting
	}

	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", q.name, err)
	}

	_, err = q.call(ctx, func() (any, error) {
		return q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.LRem(ctx, q.keys.active, 1, job.ID)
			p.Set(ctx, q.keys.job(job.ID), record, 0)
			if delay > 0 {
				p.ZAdd(ctx, q.keys.delayed, redis.Z{Score: float64(job.ProcessAt.UnixMilli()), Member: job.ID})
			} else {
				p.LPush(ctx, q.keys.wait, job.ID)
			}
			return nil
		})
	})
	return err
}

// requeue returns an active job to the wait list without spending an
// attempt. Used when the worker is shut down mid-job.
func (q *Queue) requeue(ctx context.Context, job *Job) error {
	job.AttemptsMade--
	job.State = StateWaiting
	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", q.name, err)
	}
	_, err = q.call(ctx, func() (any, error) {
		return q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.LRem(ctx, q.keys.active, 1, job.ID)
			p.Set(ctx, q.keys.job(job.ID), record, 0)
			p.RPush(ctx, q.keys.wait, job.ID)
			return nil
		})
	})
	return err
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
