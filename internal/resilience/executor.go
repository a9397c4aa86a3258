// Package resilience wraps calls to external collaborators with bounded
// retries and a per-operation circuit breaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Outcome tells the executor how to treat a failed attempt.
type Outcome struct {
	Retry bool
	// Trip counts the failure against the circuit breaker.
	Trip bool
}

type Classifier func(err error) Outcome

func tripOnly(error) Outcome { return Outcome{Trip: true} }

type Executor struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(policy Policy) *Executor {
	return &Executor{
		policy:   policy.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Do runs fn under the named breaker, retrying attempts the classifier marks
// as retryable.
func (e *Executor) Do(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	if classify == nil {
		classify = tripOnly
	}
	if !e.policy.BreakerEnabled {
		return e.retry(ctx, operation, fn, classify)
	}
	_, err := e.breaker(operation, classify).Execute(func() (struct{}, error) {
		return struct{}{}, e.retry(ctx, operation, fn, classify)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	backoff := e.policy.InitialBackoff
	var err error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !classify(err).Retry || attempt == e.policy.MaxAttempts {
			return err
		}

		slog.Warn("retrying operation",
			"operation", operation,
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err,
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		backoff = time.Duration(float64(backoff) * e.policy.Multiplier)
		if backoff > e.policy.MaxBackoff {
			backoff = e.policy.MaxBackoff
		}
	}
	return err
}

func (e *Executor) breaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}
	p := e.policy
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: p.BreakerHalfOpenMax,
		Timeout:     p.BreakerOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < p.BreakerMinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= p.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).Trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[operation] = cb
	return cb
}

// IsOpen reports whether err was returned because the breaker refused the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
