package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_Completes(t *testing.T) {
	q, _, _, _ := newTestQueue(t, retryPolicy)
	ctx := t.Context()

	var seen string
	w := NewWorker(q, func(_ context.Context, job *Job) error {
		var data map[string]string
		require.NoError(t, job.Decode(&data))
		seen = data["post"]
		return nil
	}, WorkerOptions{})

	_, err := q.Add(ctx, "publish", map[string]string{"post": "p1"}, AddOptions{JobID: "j1"})
	require.NoError(t, err)

	processed, err := w.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, "p1", seen)

	job, err := q.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, job.State)
	assert.Equal(t, 1, job.AttemptsMade)
	assert.NotNil(t, job.FinishedAt)

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[StateCompleted])
	assert.Equal(t, int64(0), counts[StateActive])
}

func TestWorker_RetriesWithBackoff(t *testing.T) {
	q, _, clock, _ := newTestQueue(t, retryPolicy)
	ctx := t.Context()
	start := clock.Now()

	var failedWith error
	w := NewWorker(q, func(context.Context, *Job) error {
		return errors.New("boom")
	}, WorkerOptions{
		OnFailed: func(_ context.Context, job *Job, err error) { failedWith = err },
	})

	_, err := q.Add(ctx, "publish", nil, AddOptions{JobID: "j1"})
	require.NoError(t, err)

	_, err = w.ProcessNext(ctx)
	require.NoError(t, err)
	job, err := q.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StateDelayed, job.State)
	assert.True(t, job.ProcessAt.Equal(start.Add(5*time.Second)))
	assert.Equal(t, "boom", job.FailedReason)

	clock.Advance(5 * time.Second)
	_, err = w.ProcessNext(ctx)
	require.NoError(t, err)
	job, err = q.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, 2, job.AttemptsMade)
	assert.True(t, job.ProcessAt.Equal(start.Add(15*time.Second)))

	clock.Advance(10 * time.Second)
	_, err = w.ProcessNext(ctx)
	require.NoError(t, err)
	job, err = q.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, 3, job.AttemptsMade)
	assert.EqualError(t, failedWith, "boom")

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[StateFailed])
	assert.Equal(t, int64(0), counts[StateDelayed])
}

func TestWorker_PermanentErrorsSkipRetries(t *testing.T) {
	q, _, _, _ := newTestQueue(t, retryPolicy)
	ctx := t.Context()

	var calls int32
	w := NewWorker(q, func(context.Context, *Job) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(errors.New("invalid media"))
	}, WorkerOptions{})

	_, err := q.Add(ctx, "publish", nil, AddOptions{JobID: "j1"})
	require.NoError(t, err)
	_, err = w.ProcessNext(ctx)
	require.NoError(t, err)

	job, err := q.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, "invalid media", job.FailedReason)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWorker_PanicFailsJob(t *testing.T) {
	q, _, _, _ := newTestQueue(t, retryPolicy)
	ctx := t.Context()

	w := NewWorker(q, func(context.Context, *Job) error { panic("nil adapter") }, WorkerOptions{})

	_, err := q.Add(ctx, "publish", nil, AddOptions{JobID: "j1"})
	require.NoError(t, err)
	_, err = w.ProcessNext(ctx)
	require.NoError(t, err)

	job, err := q.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, job.State)
	assert.Contains(t, job.FailedReason, "nil adapter")
}

func TestWorker_RetentionTrimsOldestJobs(t *testing.T) {
	q, _, clock, _ := newTestQueue(t, Policy{Attempts: 1, KeepCompleted: 2, KeepFailed: 1})
	ctx := t.Context()
	w := NewWorker(q, func(context.Context, *Job) error { return nil }, WorkerOptions{})

	for _, id := range []string{"a", "b", "c"} {
		_, err := q.Add(ctx, "x", nil, AddOptions{JobID: id})
		require.NoError(t, err)
		_, err = w.ProcessNext(ctx)
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[StateCompleted])

	_, err = q.GetJob(ctx, "a")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = q.GetJob(ctx, "c")
	assert.NoError(t, err)

	t.Run("a trimmed id can be enqueued again", func(t *testing.T) {
		job, err := q.Add(ctx, "x", nil, AddOptions{JobID: "a"})
		require.NoError(t, err)
		assert.Equal(t, StateWaiting, job.State)
	})
}

func TestWorker_ShutdownRequeuesWithoutSpendingAttempt(t *testing.T) {
	q, _, _, _ := newTestQueue(t, retryPolicy)
	ctx, cancel := context.WithCancel(t.Context())

	w := NewWorker(q, func(ctx context.Context, _ *Job) error {
		cancel()
		return ctx.Err()
	}, WorkerOptions{})

	_, err := q.Add(ctx, "publish", nil, AddOptions{JobID: "j1"})
	require.NoError(t, err)
	_, err = w.ProcessNext(ctx)
	require.NoError(t, err)

	job, err := q.GetJob(t.Context(), "j1")
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, job.State)
	assert.Equal(t, 0, job.AttemptsMade)

	counts, err := q.Counts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[StateWaiting])
	assert.Equal(t, int64(0), counts[StateActive])
}

func TestWorker_Run(t *testing.T) {
	q, _, _, _ := newTestQueue(t, retryPolicy)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan string, 2)
	w := NewWorker(q, func(_ context.Context, job *Job) error {
		done <- job.ID
		return nil
	}, WorkerOptions{Concurrency: 2})

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	_, err := q.Add(t.Context(), "x", nil, AddOptions{JobID: "a"})
	require.NoError(t, err)
	_, err = q.Add(t.Context(), "x", nil, AddOptions{JobID: "b"})
	require.NoError(t, err)

	got := map[string]bool{}
	for range 2 {
		select {
		case id := <-done:
			got[id] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, got)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
