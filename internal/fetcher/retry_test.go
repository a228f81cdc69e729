package fetcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripfetch/tripfetch/internal/domain"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Backoff: 10 * time.Millisecond, MaxBackoff: 40 * time.Millisecond}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	path, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		return "out.zip", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "out.zip", path)
	assert.Equal(t, 1, calls)
}

func TestRetryNotFoundShortCircuits(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("%w: gone.zip", domain.ErrNotFound)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	var exhausted *domain.RetriesExhaustedError
	assert.False(t, errors.As(err, &exhausted), "not-found must not be wrapped as exhausted retries")
	assert.Equal(t, 1, calls, "a missing resource must not be retried")
}

func TestRetryTransientThenSuccess(t *testing.T) {
	p := Policy{Attempts: 3, Backoff: 50 * time.Millisecond, MaxBackoff: time.Second}

	calls := 0
	start := time.Now()
	path, err := Retry(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", fmt.Errorf("%w: connection reset", domain.ErrConnection)
		}
		return "out.zip", nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "out.zip", path)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, elapsed, p.Backoff, "backoff must be observed before the retry")
}

func TestRetryExhaustedWrapsLastCause(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("%w: status 503", domain.ErrConnection)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var exhausted *domain.RetriesExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.True(t, errors.Is(exhausted.Err, domain.ErrConnection))
	assert.Equal(t, domain.OutcomeRetriesExhausted, domain.Classify(err))
}

func TestRetryBackoffDoublesAndCaps(t *testing.T) {
	p := Policy{Attempts: 5, Backoff: time.Second, MaxBackoff: 3 * time.Second}

	assert.Equal(t, time.Second, p.delay(2))
	assert.Equal(t, 2*time.Second, p.delay(3))
	assert.Equal(t, 3*time.Second, p.delay(4), "delay must cap at MaxBackoff")
	assert.Equal(t, 3*time.Second, p.delay(5))
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, Policy{Attempts: 3, Backoff: 10 * time.Second, MaxBackoff: 10 * time.Second},
			func(context.Context) (string, error) {
				calls++
				return "", fmt.Errorf("%w: flaky", domain.ErrConnection)
			})
		done <- err
	}()

	// Cancel while the retry loop is sleeping on the first backoff.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retry did not abort on context cancellation")
	}
}
