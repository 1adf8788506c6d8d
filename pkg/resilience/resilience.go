package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/districtops/steward/pkg/log"
	"github.com/districtops/steward/pkg/metrics"
)

// Config tunes the retry policy and the per-dependency circuit breakers
type Config struct {
	// Retry policy
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Circuit breaker
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
	MonitoringWindow time.Duration

	// PermanentErrors are never retried. Not-found errors belong here:
	// retrying them burns the retry budget without any chance of success.
	PermanentErrors []error
}

// DefaultConfig returns the stock resilience policy
func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		InitialInterval:  200 * time.Millisecond,
		MaxInterval:      5 * time.Second,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		MonitoringWindow: 60 * time.Second,
	}
}

// Result is the envelope returned by a wrapped call. The underlying error is
// preserved in Err.
type Result struct {
	OK       bool
	Err      error
	Attempts int
}

// Executor wraps storage operations with a bounded retry policy and a
// circuit breaker scoped per dependency. Once a breaker opens, calls fail
// fast without hitting the dependency.
type Executor struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*gobreaker.CircuitBreaker
	logger   zerolog.Logger
}

// NewExecutor creates an executor with the given policy
func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		logger:   log.WithComponent("resilience"),
	}
}

// breaker returns the circuit breaker for a dependency, creating it on first use
func (e *Executor) breaker(dependency string) *gobreaker.CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()

	if br, ok := e.breakers[dependency]; ok {
		return br
	}

	settings := gobreaker.Settings{
		Name:        dependency,
		MaxRequests: 1,
		Interval:    e.cfg.MonitoringWindow,
		Timeout:     e.cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= e.cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn().
				Str("dependency", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.BreakerTransitions.WithLabelValues(name, to.String()).Inc()
		},
	}

	br := gobreaker.NewCircuitBreaker(settings)
	e.breakers[dependency] = br
	return br
}

// Execute runs fn behind the dependency's circuit breaker with retries.
// An open breaker and any configured permanent error stop the retry loop
// immediately.
func (e *Executor) Execute(dependency, operation string, fn func() error) Result {
	br := e.breaker(dependency)
	attempts := 0

	op := func() error {
		attempts++
		_, err := br.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		for _, p := range e.cfg.PermanentErrors {
			if errors.Is(err, p) {
				return backoff.Permanent(err)
			}
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.InitialInterval
	bo.MaxInterval = e.cfg.MaxInterval

	err := backoff.Retry(op, backoff.WithMaxRetries(bo, e.cfg.MaxRetries))
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("dependency", dependency).
			Str("operation", operation).
			Int("attempts", attempts).
			Msg("operation failed after retries")
	}

	return Result{OK: err == nil, Err: err, Attempts: attempts}
}
