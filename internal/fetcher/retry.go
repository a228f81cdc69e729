package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/tripfetch/tripfetch/internal/domain"
)

// Policy controls the retry loop around a fetch.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Backoff is the delay before the first retry; it doubles on each
	// further retry.
	Backoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
}

// DefaultPolicy matches the dataset endpoint's behavior: 3 attempts,
// exponential backoff from 1s capped at 10s.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Backoff:    time.Second,
		MaxBackoff: 10 * time.Second,
	}
}

// Retry runs op up to p.Attempts times. A not-found failure is terminal
// and surfaces immediately; nothing on the server will change between
// attempts. When every attempt fails on a retryable error the result is
// a *domain.RetriesExhaustedError wrapping the last cause.
func Retry(ctx context.Context, p Policy, op func(context.Context) (string, error)) (string, error) {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.delay(attempt)); err != nil {
				return "", err
			}
		}

		path, err := op(ctx)
		if err == nil {
			return path, nil
		}

		if errors.Is(err, domain.ErrNotFound) {
			return "", err
		}

		lastErr = err
	}

	return "", &domain.RetriesExhaustedError{Attempts: p.Attempts, Err: lastErr}
}

// delay returns the backoff before the given attempt (attempt >= 2):
// Backoff, 2*Backoff, 4*Backoff... capped at MaxBackoff.
func (p Policy) delay(attempt int) time.Duration {
	d := p.Backoff << uint(attempt-2)
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
