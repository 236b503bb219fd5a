package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/abdulachik/socialpilot/internal/metrics"
	"github.com/abdulachik/socialpilot/internal/platform"
	"github.com/abdulachik/socialpilot/internal/queue"
)

// ErrNotConnected is returned by read operations on a nil Client.
var ErrNotConnected = errors.New("job queue not connected")

// Client enqueues background jobs. A nil *Client is valid: every enqueue on
// it is a no-op that logs a warning and returns a nil job, so callers can
// hold one unconditionally and treat nil as "not scheduled".
type Client struct {
	rdb    redis.UniversalClient
	queues *Queues
	now    func() time.Time
}

// ConnectOptions configures Connect.
type ConnectOptions struct {
	URL     string
	Timeout time.Duration // connect and command timeout (default: 1s)
	Prefix  string
}

// Connect opens the broker connection and pings it within Timeout. When the
// broker is unreachable it logs a warning and returns nil; background jobs
// are then disabled for the life of the process.
func Connect(ctx context.Context, opts ConnectOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		slog.Warn("job queue disabled: invalid broker url", "error", err)
		return nil
	}
	redisOpts.DialTimeout = opts.Timeout
	redisOpts.ReadTimeout = opts.Timeout
	redisOpts.WriteTimeout = opts.Timeout
	redisOpts.MaxRetries = 1

	rdb := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("job queue disabled: broker unreachable", "addr", redisOpts.Addr, "error", err)
		_ = rdb.Close()
		return nil
	}

	slog.Info("job queue connected", "addr", redisOpts.Addr, "db", redisOpts.DB)

	var clientOpts []ClientOption
	if opts.Prefix != "" {
		clientOpts = append(clientOpts, WithQueueOptions(queue.WithPrefix(opts.Prefix)))
	}
	return NewClient(rdb, clientOpts...)
}

// ClientOption customizes a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	now       func() time.Time
	queueOpts []queue.Option
}

// WithClock replaces time.Now for delay calculations and queue scheduling.
func WithClock(now func() time.Time) ClientOption {
	return func(c *clientConfig) {
		c.now = now
		c.queueOpts = append(c.queueOpts, queue.WithClock(now))
	}
}

// WithQueueOptions passes opts to every queue.
func WithQueueOptions(opts ...queue.Option) ClientOption {
	return func(c *clientConfig) { c.queueOpts = append(c.queueOpts, opts...) }
}

// NewClient wraps an existing broker connection. All queues share one
// circuit breaker unless the queue options supply their own.
func NewClient(rdb redis.UniversalClient, opts ...ClientOption) *Client {
	cfg := clientConfig{
		now:       time.Now,
		queueOpts: []queue.Option{queue.WithBreaker(queue.NewBreaker(queue.BreakerConfig{Name: "broker"}))},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		rdb:    rdb,
		queues: NewQueues(rdb, cfg.queueOpts...),
		now:    cfg.now,
	}
}

// Connected reports whether c has a broker connection.
func (c *Client) Connected() bool {
	return c != nil
}

// Queues returns the underlying queues, or nil for a nil client.
func (c *Client) Queues() *Queues {
	if c == nil {
		return nil
	}
	return c.queues
}

// Ping checks the broker connection.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return ErrNotConnected
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", queue.ErrUnavailable, err)
	}
	return nil
}

// Close tears down the broker connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// SchedulePost enqueues a publish to run at data.ScheduledFor. A time in the
// past runs as soon as a worker is free. Submitting the same post and
// platform again while the first job is still retained returns the existing
// job instead of scheduling a second publish.
func (c *Client) SchedulePost(ctx context.Context, data PostSchedulingJobData) (*queue.Job, error) {
	if data.PostID == "" {
		return nil, fmt.Errorf("schedule post: post id is required")
	}
	if !platform.IsSupported(data.Platform) {
		return nil, &platform.UnsupportedPlatformError{Platform: data.Platform}
	}

	var delay time.Duration
	if c != nil {
		delay = max(data.ScheduledFor.Sub(c.now()), 0)
	}
	return c.enqueue(ctx, PostScheduling, JobPublishPost, data.JobID(), data, delay)
}

// CollectAnalytics enqueues an analytics read to run after delay.
func (c *Client) CollectAnalytics(ctx context.Context, data AnalyticsJobData, delay time.Duration) (*queue.Job, error) {
	if data.PlatformPostID == "" {
		return nil, fmt.Errorf("collect analytics: platform post id is required")
	}
	return c.enqueue(ctx, Analytics, JobCollectAnalytics, "analytics-"+uuid.NewString(), data, delay)
}

// GenerateAIContent enqueues an AI generation. The queue is high priority,
// so it runs ahead of jobs already waiting.
func (c *Client) GenerateAIContent(ctx context.Context, data AIGenerationJobData) (*queue.Job, error) {
	if data.Prompt == "" {
		return nil, fmt.Errorf("generate content: prompt is required")
	}
	return c.enqueue(ctx, AIGeneration, JobGenerateContent, "ai-"+uuid.NewString(), data, 0)
}

func (c *Client) enqueue(ctx context.Context, queueName, jobName, jobID string, data any, delay time.Duration) (*queue.Job, error) {
	if c == nil {
		skipped(queueName, jobID, "not_connected", nil)
		return nil, nil
	}
	q, _ := c.queues.ByName(queueName)

	job, err := q.Add(ctx, jobName, data, queue.AddOptions{JobID: jobID, Delay: delay})
	if errors.Is(err, queue.ErrUnavailable) {
		reason := "unavailable"
		if errors.Is(err, circuitbreaker.ErrOpen) {
			reason = "circuit_open"
		}
		skipped(queueName, jobID, reason, err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func skipped(queueName, jobID, reason string, err error) {
	metrics.EnqueueSkipped.WithLabelValues(queueName, reason).Inc()
	args := []any{"queue", queueName, "job_id", jobID, "reason", reason}
	if err != nil {
		args = append(args, "error", err)
	}
	slog.Warn("job not scheduled", args...)
}

// CleanupQueues prunes finished jobs older than each queue's retention
// window and returns how many were removed per queue. Broker errors are
// logged and never returned.
func (c *Client) CleanupQueues(ctx context.Context) map[string]int {
	removed := make(map[string]int)
	if c == nil {
		slog.Warn("queue cleanup skipped", "reason", "not_connected")
		return removed
	}

	for _, w := range cleanupWindows {
		q, _ := c.queues.ByName(w.queue)
		n, err := q.Clean(ctx, w.grace, w.state)
		if err != nil {
			slog.Warn("queue cleanup failed", "queue", w.queue, "state", w.state, "error", err)
			continue
		}
		removed[w.queue] += n
	}

	slog.Info("queue cleanup finished", "removed", removed)
	return removed
}

// Counts returns the per-state job counts of every queue.
func (c *Client) Counts(ctx context.Context) (map[string]map[queue.State]int64, error) {
	if c == nil {
		return nil, ErrNotConnected
	}
	out := make(map[string]map[queue.State]int64)
	for _, q := range c.queues.All() {
		counts, err := q.Counts(ctx)
		if err != nil {
			return nil, err
		}
		out[q.Name()] = counts
	}
	return out, nil
}
