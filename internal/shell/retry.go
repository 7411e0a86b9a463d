// Package shell holds the I/O-facing glue around the pure core: the event
// codec used by the HTTP surface and the event log, and the bounded retry
// loop protecting versioned writes.
package shell

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/libcirc/patronblocks/internal/storage"
)

// DefaultMaxAttempts bounds the conflict retry loop. Ten attempts ride out
// bursty concurrent updates to the same patron's summary (a checkout and a
// fee event landing together) without ever looping unboundedly; this is
// deliberate policy, not a tuning artifact.
const DefaultMaxAttempts = 10

const (
	defaultBaseDelay    = 5 * time.Millisecond
	defaultJitterFactor = 0.25
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

	// ErrNilSleepFunc is returned when a nil sleep function is provided to WithSleep.
	ErrNilSleepFunc = errors.New("sleep function must not be nil")
)

// RetryableFunc is the unit of work the retry loop drives.
type RetryableFunc func(ctx context.Context) error

// SleepFunc waits out a backoff delay. Tests substitute a zero-delay
// implementation so retry behavior can be asserted without wall time.
type SleepFunc func(ctx context.Context, delay time.Duration) error

// retryConfig holds configuration for the conflict retry loop.
type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	sleep        SleepFunc
	onRetry      func(attempt int, err error)
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, and so on.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter added to each backoff delay as a
// fraction of the delay. Valid range: 0.0 (none) to 1.0 (100%).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithSleep replaces the sleeping implementation.
func WithSleep(sleep SleepFunc) RetryOption {
	return func(config *retryConfig) error {
		if sleep == nil {
			return ErrNilSleepFunc
		}

		config.sleep = sleep

		return nil
	}
}

// WithRetryListener registers a callback invoked before each retry with
// the upcoming attempt number and the conflict that caused it.
func WithRetryListener(listener func(attempt int, err error)) RetryOption {
	return func(config *retryConfig) error {
		config.onRetry = listener
		return nil
	}
}

// RetryOnVersionConflict executes fn, retrying with exponential backoff
// for as long as it fails with storage.ErrVersionConflict, up to the
// configured attempt bound. Every other error fails fast: a referential
// fault will not resolve itself by re-reading, so retrying it would only
// hide the problem.
//
// Once the bound is exhausted the last conflict is returned as the result.
func RetryOnVersionConflict(ctx context.Context, fn RetryableFunc, options ...RetryOption) error {
	config := &retryConfig{
		maxAttempts:  DefaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
		sleep:        sleepWithContext,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			if config.onRetry != nil {
				config.onRetry(attempt, lastErr)
			}

			if err := config.sleep(ctx, config.backoffDelay(attempt)); err != nil {
				return err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !errors.Is(lastErr, storage.ErrVersionConflict) {
			return lastErr // permanent failure, do not retry
		}
	}

	return lastErr // bound exhausted, surface the conflict
}

// backoffDelay computes baseDelay * 2^(attempt-1) plus jitter to keep
// colliding writers from retrying in lockstep.
func (config *retryConfig) backoffDelay(attempt int) time.Duration {
	delay := config.baseDelay * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // math/rand is sufficient for jitter

	return delay + time.Duration(jitter)
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
