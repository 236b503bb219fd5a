package queue

import (
	"errors"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/redis/go-redis/v9"
)

// BreakerConfig configures the circuit breaker shared by the queues of one
// broker connection.
type BreakerConfig struct {
	Name string
	// FailureThreshold is the number of consecutive broker errors that opens
	// the circuit.
	FailureThreshold uint
	// Delay is how long the circuit stays open before a trial call.
	Delay time.Duration
}

// NewBreaker builds a circuit breaker over broker calls. redis.Nil is a
// normal reply and never counts as a failure.
func NewBreaker(cfg BreakerConfig) circuitbreaker.CircuitBreaker[any] {
	if cfg.Name == "" {
		cfg.Name = "queue"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 30 * time.Second
	}

	return circuitbreaker.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return err != nil && !errors.Is(err, redis.Nil)
		}).
		WithFailureThreshold(cfg.FailureThreshold).
		WithDelay(cfg.Delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			slog.Warn("queue circuit breaker state change",
				"breaker", cfg.Name,
				"from_state", stateName(event.OldState),
				"to_state", stateName(event.NewState),
			)
		}).
		Build()
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.ClosedState:
		return "closed"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	}
	return "unknown"
}
