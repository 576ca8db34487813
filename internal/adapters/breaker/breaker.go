// Package breaker builds the circuit breakers guarding outbound service calls.
package breaker

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ewilliams-labs/animeterminal/internal/logging"
	"github.com/ewilliams-labs/animeterminal/internal/metrics"
)

const (
	DefaultFailures = 5
	DefaultCooldown = 30 * time.Second
)

// Settings configures a breaker.
type Settings struct {
	Name string
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
	// IsSuccessful classifies call errors; nil counts every error as a failure.
	IsSuccessful func(err error) bool
}

// New returns a breaker that reports its state through logs and metrics.
func New[T any](s Settings) *gobreaker.CircuitBreaker[T] {
	if s.Failures == 0 {
		s.Failures = DefaultFailures
	}
	if s.Cooldown <= 0 {
		s.Cooldown = DefaultCooldown
	}
	metrics.SetBreakerState(s.Name, int(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("breaker: state changed")
			metrics.SetBreakerState(name, int(to))
		},
		IsSuccessful: s.IsSuccessful,
	})
}
