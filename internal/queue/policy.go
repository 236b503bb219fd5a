package queue

import "time"

// BackoffType selects how the retry delay grows.
type BackoffType string

const (
	BackoffNone        BackoffType = ""
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
)

// Backoff is the delay between attempts.
type Backoff struct {
	Type  BackoffType   `json:"type,omitempty"`
	Delay time.Duration `json:"delay,omitempty"`
}

// Next returns the delay before the next attempt once attemptsMade attempts
// have failed.
func (b Backoff) Next(attemptsMade int) time.Duration {
	switch b.Type {
	case BackoffFixed:
		return b.Delay
	case BackoffExponential:
		if attemptsMade < 1 {
			attemptsMade = 1
		}
		return b.Delay << (attemptsMade - 1)
	}
	return 0
}

// Policy is the per-queue job configuration.
type Policy struct {
	// Attempts is the total number of tries, the first one included.
	Attempts int
	Backoff  Backoff
	// Priority jobs are pushed to the consuming end of the wait list.
	Priority bool
	// KeepCompleted and KeepFailed bound how many finished jobs are retained.
	// A negative value keeps everything.
	KeepCompleted int
	KeepFailed    int
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}
