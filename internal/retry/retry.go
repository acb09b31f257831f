// Package retry runs a single remote call under a bounded attempt budget with capped
// exponential backoff. Client errors (HTTP 400) are never retried.
package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"

	"github.com/castarchive/castarchive/pkg/config"
	"github.com/castarchive/castarchive/pkg/telemetry"
)

// Policy is an attempt budget and a delay schedule.
// Backoff(i) is the wait after failed attempt i (0-based).
type Policy struct {
	Times   int
	Backoff func(attempt int) time.Duration

	// OnRetry, when set, is called before each wait
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Exponential returns min(base*2^attempt, max). A non-positive base never waits.
func Exponential(base, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if base <= 0 {
			return 0
		}
		d := base
		for i := 0; i < attempt; i++ {
			d *= 2
			if d >= max || d <= 0 {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// DefaultPolicy is five attempts, 1s doubling up to 30s
func DefaultPolicy() Policy {
	return Policy{
		Times:   5,
		Backoff: Exponential(time.Second, 30*time.Second),
	}
}

// FromConfig builds the policy described by cfg
func FromConfig(cfg *config.RetryConfig) Policy {
	return Policy{
		Times:   cfg.Attempts,
		Backoff: Exponential(cfg.BaseDelay, cfg.MaxDelay),
	}
}

// IsClientError reports whether err carries HTTP status 400.
// Such requests are malformed and will fail identically on every attempt.
func IsClientError(err error) bool {
	var sc interface{ StatusCode() int }
	return errors.As(err, &sc) && sc.StatusCode() == http.StatusBadRequest
}

// schedule adapts Policy.Backoff to backoff.BackOff
type schedule struct {
	next    func(int) time.Duration
	attempt int
}

func (s *schedule) NextBackOff() time.Duration {
	d := s.next(s.attempt)
	s.attempt++
	return d
}

func (s *schedule) Reset() {
	s.attempt = 0
}

// Do runs op until it succeeds, fails with a client error, or the budget is spent.
// The last error is returned on exhaustion.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	times := p.Times
	if times < 1 {
		times = 1
	}
	next := p.Backoff
	if next == nil {
		next = DefaultPolicy().Backoff
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		telemetry.Add(ctx, telemetry.RetryAttempts, 1, attribute.Int("attempt", attempt))
		res, err := op(ctx)
		if err != nil && IsClientError(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, delay time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
	}

	var b backoff.BackOff = &schedule{next: next}
	b = backoff.WithMaxRetries(b, uint64(times-1))
	b = backoff.WithContext(b, ctx)

	return backoff.RetryNotifyWithData(operation, b, notify)
}
