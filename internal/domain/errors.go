package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a 404 from the remote endpoint. Not retryable.
var ErrNotFound = errors.New("archive not found")

// ErrConnection indicates a transient network, protocol or timeout failure.
var ErrConnection = errors.New("connection failure")

// RetriesExhaustedError is returned when every retry attempt has been
// consumed. It wraps the last underlying failure so callers can still
// tell an exhausted not-found apart from an exhausted connection error
// via errors.Is on the wrapped cause.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

type OutcomeKind string

const (
	OutcomeSuccess           OutcomeKind = "success"
	OutcomeNotFound          OutcomeKind = "not_found"
	OutcomeRetriesExhausted  OutcomeKind = "retries_exhausted"
	OutcomeConnectionFailure OutcomeKind = "connection_failure"
	OutcomeUnexpected        OutcomeKind = "unexpected"
)

// Classify maps an error from the pipeline onto the outcome taxonomy.
// RetriesExhaustedError wins over its wrapped cause so an exhausted run
// is never reported as a plain connection failure.
func Classify(err error) OutcomeKind {
	if err == nil {
		return OutcomeSuccess
	}

	var exhausted *RetriesExhaustedError
	if errors.As(err, &exhausted) {
		return OutcomeRetriesExhausted
	}

	if errors.Is(err, ErrNotFound) {
		return OutcomeNotFound
	}

	if errors.Is(err, ErrConnection) {
		return OutcomeConnectionFailure
	}

	return OutcomeUnexpected
}
