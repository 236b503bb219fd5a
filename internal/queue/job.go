package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// State is the last recorded lifecycle state of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job is the record stored under {prefix}:{queue}:job:{id}.
type Job struct {
	ID           string          `json:"id"`
	Queue        string          `json:"queue"`
	Name         string          `json:"name"`
	Data         json.RawMessage `json:"data"`
	Attempts     int             `json:"attempts"`
	AttemptsMade int             `json:"attemptsMade"`
	Backoff      Backoff         `json:"backoff"`
	Delay        time.Duration   `json:"delay"`
	State        State           `json:"state"`
	CreatedAt    time.Time       `json:"createdAt"`
	ProcessAt    time.Time       `json:"processAt"`
	ProcessedAt  *time.Time      `json:"processedAt,omitempty"`
	FinishedAt   *time.Time      `json:"finishedAt,omitempty"`
	FailedReason string          `json:"failedReason,omitempty"`
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Data, v); err != nil {
		return fmt.Errorf("decode %s job %s: %w", j.Queue, j.ID, err)
	}
	return nil
}

// ErrJobNotFound is returned by GetJob for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// ErrUnavailable wraps every broker failure so callers can tell a missing
// broker apart from a bad job.
var ErrUnavailable = errors.New("queue broker unavailable")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable: the worker fails the job at once
// regardless of the attempts left.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
