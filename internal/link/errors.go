package link

import (
	"errors"
	"fmt"
)

// Domain errors for the link driver.
var (
	// ErrExhausted is matched by *ExhaustedError via errors.Is.
	ErrExhausted = errors.New("link: retries exhausted")

	// ErrCancelled is returned when the caller's context ends mid-operation.
	ErrCancelled = errors.New("link: operation cancelled")

	// ErrAttemptTimeout marks a single attempt that did not finish in time.
	ErrAttemptTimeout = errors.New("link: attempt timed out")

	// ErrVerifyMismatch is returned when the value read back after a set
	// differs from the value written.
	ErrVerifyMismatch = errors.New("link: read-back does not match written value")

	// ErrClosed is returned for operations on a closed driver.
	ErrClosed = errors.New("link: driver closed")

	// ErrHostInit is returned when the periph.io host drivers fail to load.
	ErrHostInit = errors.New("link: host initialisation failed")
)

// ExhaustedError reports an operation that failed on every attempt.
type ExhaustedError struct {
	Attempts  int
	LastCause error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("link: gave up after %d attempts: %v", e.Attempts, e.LastCause)
}

// Unwrap returns the cause of the final attempt.
func (e *ExhaustedError) Unwrap() error {
	return e.LastCause
}

// Is reports whether target is ErrExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}
