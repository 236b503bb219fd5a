// Package jobs defines the post-scheduling, analytics and ai-generation
// queues, their payloads, the enqueue client and the job handlers.
package jobs

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abdulachik/socialpilot/internal/queue"
)

// Queue names.
const (
	PostScheduling = "post-scheduling"
	Analytics      = "analytics"
	AIGeneration   = "ai-generation"
)

// Job names within the queues.
const (
	JobPublishPost      = "publish-post"
	JobCollectAnalytics = "collect-analytics"
	JobGenerateContent  = "generate-content"
)

// Policies holds the retry and retention policy of each queue.
var Policies = map[string]queue.Policy{
	PostScheduling: {
		Attempts:      3,
		Backoff:       queue.Backoff{Type: queue.BackoffExponential, Delay: 5 * time.Second},
		KeepCompleted: 100,
		KeepFailed:    50,
	},
	Analytics: {
		Attempts:      2,
		Backoff:       queue.Backoff{Type: queue.BackoffFixed, Delay: 10 * time.Second},
		KeepCompleted: 50,
		KeepFailed:    25,
	},
	AIGeneration: {
		Attempts:      1,
		Priority:      true,
		KeepCompleted: 10,
		KeepFailed:    10,
	},
}

// cleanupWindow is how long finished jobs of one state are kept by
// CleanupQueues.
type cleanupWindow struct {
	queue string
	state queue.State
	grace time.Duration
}

var cleanupWindows = []cleanupWindow{
	{PostScheduling, queue.StateCompleted, 24 * time.Hour},
	{PostScheduling, queue.StateFailed, 7 * 24 * time.Hour},
	{Analytics, queue.StateCompleted, 24 * time.Hour},
	{AIGeneration, queue.StateCompleted, time.Hour},
}

// Queues are the three named queues on one broker connection.
type Queues struct {
	PostScheduling *queue.Queue
	Analytics      *queue.Queue
	AIGeneration   *queue.Queue
}

// NewQueues creates the queues on rdb.
func NewQueues(rdb redis.UniversalClient, opts ...queue.Option) *Queues {
	return &Queues{
		PostScheduling: queue.New(rdb, PostScheduling, Policies[PostScheduling], opts...),
		Analytics:      queue.New(rdb, Analytics, Policies[Analytics], opts...),
		AIGeneration:   queue.New(rdb, AIGeneration, Policies[AIGeneration], opts...),
	}
}

// All returns the queues in a stable order.
func (q *Queues) All() []*queue.Queue {
	return []*queue.Queue{q.PostScheduling, q.Analytics, q.AIGeneration}
}

// ByName returns the queue called name.
func (q *Queues) ByName(name string) (*queue.Queue, bool) {
	for _, qq := range q.All() {
		if qq.Name() == name {
			return qq, true
		}
	}
	return nil, false
}
