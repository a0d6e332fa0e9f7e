// Package resilience wraps outbound calls with bounded retries, a circuit
// breaker and an optional fallback value.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sony/gobreaker/v2"

	apperrors "github.com/utafrali/order-service/pkg/errors"
)

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = gobreaker.ErrOpenState

const jitterFraction = 0.25

// Config parameterizes a Policy.
type Config struct {
	// Name identifies the protected dependency in metrics and logs.
	Name string

	// MaxAttempts bounds how many times a call is tried. Values below 1 mean 1.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt; it doubles per
	// attempt up to MaxBackoff, with ±25% jitter.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// FailureRatio trips the breaker once at least MinRequests calls were seen.
	FailureRatio float64
	MinRequests  uint32

	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32

	// Interval clears closed-state counts periodically; 0 never clears.
	Interval time.Duration

	// OpenTimeout is how long the breaker stays open before half-opening.
	OpenTimeout time.Duration
}

// DefaultConfig returns three attempts with 200ms..2s backoff and a breaker
// that opens at a 50% failure ratio over at least 10 calls.
func DefaultConfig(name string) Config {
	return Config{
		Name:           name,
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		FailureRatio:   0.5,
		MinRequests:    10,
		MaxRequests:    1,
		Interval:       60 * time.Second,
		OpenTimeout:    30 * time.Second,
	}
}

// Fallback produces the value returned once the policy gives up on a call.
type Fallback[T any] func(ctx context.Context, err error) T

// Policy is a retry + circuit breaker decorator around calls returning T.
type Policy[T any] struct {
	cfg      Config
	breaker  *gobreaker.CircuitBreaker[T]
	fallback Fallback[T]
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Policy. Downstream 4xx errors never count against the breaker.
func New[T any](cfg Config, logger *slog.Logger) *Policy[T] {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, apperrors.ErrExternalClient)
		},
	}

	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &Policy[T]{
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[T](settings),
		logger:  logger,
		sleep:   sleepContext,
	}
}

// WithFallback returns a copy of the policy that converts a final failure into
// fn's value instead of an error. The copy shares the breaker.
func (p *Policy[T]) WithFallback(fn Fallback[T]) *Policy[T] {
	cpy := *p
	cpy.fallback = fn
	return &cpy
}

// Execute runs fn under the policy. Retryable failures are retried with
// backoff; once attempts are exhausted, the breaker is open, or the failure is
// not retryable, the fallback value is returned if one is configured and the
// last error otherwise.
func (p *Policy[T]) Execute(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := p.backoff(attempt - 1)
			p.logger.DebugContext(ctx, "retrying call",
				slog.String("dependency", p.cfg.Name),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", wait),
			)
			if err := p.sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}

		result, err := p.breaker.Execute(func() (T, error) {
			return fn(ctx)
		})
		callsTotal.WithLabelValues(p.cfg.Name, outcome(err)).Inc()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !p.retryable(ctx, err) {
			break
		}
	}

	if p.fallback != nil {
		fallbackTotal.WithLabelValues(p.cfg.Name).Inc()
		p.logger.WarnContext(ctx, "call failed, using fallback",
			slog.String("dependency", p.cfg.Name),
			slog.String("error", lastErr.Error()),
		)
		return p.fallback(ctx, lastErr), nil
	}

	var zero T
	return zero, fmt.Errorf("%s: %w", p.cfg.Name, lastErr)
}

// State returns the current breaker state.
func (p *Policy[T]) State() gobreaker.State {
	return p.breaker.State()
}

func (p *Policy[T]) retryable(ctx context.Context, err error) bool {
	switch {
	case ctx.Err() != nil:
		return false
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return false
	case errors.Is(err, apperrors.ErrExternalClient):
		return false
	default:
		return true
	}
}

// backoff returns the wait before retry n (1-indexed) with ±25% jitter.
func (p *Policy[T]) backoff(n int) time.Duration {
	base := p.cfg.InitialBackoff << (n - 1)
	if p.cfg.MaxBackoff > 0 && (base > p.cfg.MaxBackoff || base <= 0) {
		base = p.cfg.MaxBackoff
	}
	jitter := time.Duration(float64(base) * jitterFraction * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter
	return base + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	default:
		return "failure"
	}
}
