// Package circuit wraps sony/gobreaker with the project's options style and
// maps an open breaker to sentinel.ErrUnavailable.
package circuit

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"intranet/pkg/platform/sentinel"
)

type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

type config struct {
	failureThreshold uint32
	halfOpenRequests uint32
	openTimeout      time.Duration
	interval         time.Duration
	logger           *slog.Logger
	onStateChange    func(name string, from, to State)
	isSuccessful     func(err error) bool
}

type Option func(*config)

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n uint32) Option {
	return func(c *config) { c.failureThreshold = n }
}

// WithOpenTimeout sets how long the breaker stays open before probing.
func WithOpenTimeout(d time.Duration) Option {
	return func(c *config) { c.openTimeout = d }
}

// WithHalfOpenRequests sets how many probes are let through when half-open.
func WithHalfOpenRequests(n uint32) Option {
	return func(c *config) { c.halfOpenRequests = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithStateChange registers a callback, e.g. to update a gauge.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(c *config) { c.onStateChange = fn }
}

// WithSuccessFilter marks errors that must not count as failures, such as a
// remote rejecting bad input.
func WithSuccessFilter(fn func(err error) bool) Option {
	return func(c *config) { c.isSuccessful = fn }
}

// Breaker guards calls that return T.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New builds a breaker that opens after 5 consecutive failures by default.
func New[T any](name string, opts ...Option) *Breaker[T] {
	cfg := config{
		failureThreshold: 5,
		halfOpenRequests: 1,
		openTimeout:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.halfOpenRequests,
		Interval:    cfg.interval,
		Timeout:     cfg.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.failureThreshold
		},
		IsSuccessful: cfg.isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if cfg.logger != nil {
				cfg.logger.Warn("circuit breaker state change",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			}
			if cfg.onStateChange != nil {
				cfg.onStateChange(name, from, to)
			}
		},
	}
	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn unless the breaker is open. Rejections wrap sentinel.ErrUnavailable.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%s: %w", b.cb.Name(), sentinel.ErrUnavailable)
	}
	return out, err
}

func (b *Breaker[T]) State() State {
	return b.cb.State()
}

func (b *Breaker[T]) Name() string {
	return b.cb.Name()
}
