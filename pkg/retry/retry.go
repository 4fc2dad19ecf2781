// Package retry provides a bounded, fixed-delay retry wrapper around remote
// control-plane operations. Whether an error is worth another attempt is
// decided entirely by a caller-supplied predicate; the engine itself never
// inspects provider error codes.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted marks an error returned after the attempt cap was reached.
// The last operation error remains reachable through errors.As/errors.Unwrap.
var ErrExhausted = errors.New("retry attempts exhausted")

// Options controls a single retry run.
type Options struct {
	// Delay is the fixed pause between attempts. No exponential growth:
	// the waits this engine covers (identity propagation, gateway rate
	// ceilings) recover on the order of seconds, not minutes.
	Delay time.Duration

	// MaxAttempts caps the total number of invocations, first try included.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Retryable classifies an operation error. A false return propagates
	// the error unchanged after the current attempt.
	Retryable func(error) bool

	// OnRetry, if set, is invoked before each re-attempt with the attempt
	// number just failed (1-based) and its error. Side effects only,
	// typically progress reporting.
	OnRetry func(attempt int, err error)
}

// exhaustedError tags the final error of a capped run while keeping the
// provider error in the chain.
type exhaustedError struct {
	attempts int
	err      error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("retry attempts exhausted after %d attempts: %v", e.attempts, e.err)
}

func (e *exhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.err}
}

// Do invokes op until it succeeds, fails terminally, or exhausts the attempt
// cap. A non-retryable error is returned exactly as op produced it. Hitting
// the cap returns the last error wrapped so that errors.Is(err, ErrExhausted)
// holds. Context cancellation during an inter-attempt wait returns ctx.Err().
func Do[T any](ctx context.Context, op func() (T, error), opts Options) (T, error) {
	var zero T
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		if opts.Retryable == nil || !opts.Retryable(err) {
			return zero, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}
		select {
		case <-time.After(opts.Delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, &exhaustedError{attempts: attempts, err: lastErr}
}

// DoVoid is Do for operations without a result value.
func DoVoid(ctx context.Context, op func() error, opts Options) error {
	_, err := Do(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, opts)
	return err
}
