// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // 0 retries forever
	InitialWait time.Duration // wait before the second attempt
	MaxWait     time.Duration // upper bound on a single wait
	Multiplier  float64
	Jitter      float64 // fraction of the wait, 0-1

	// OnRetry is called before each wait with the attempt that failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultConfig returns the defaults used for backend calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// WithAttempts returns a copy of cfg with MaxAttempts set to n.
func (c Config) WithAttempts(n int) Config {
	c.MaxAttempts = n
	return c
}

// RetryableError marks an error as transient.
type RetryableError struct {
	Err error
}

func (e RetryableError) Error() string {
	return e.Err.Error()
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err, or anything it wraps, is transient.
func IsRetryable(err error) bool {
	var retryable RetryableError
	return errors.As(err, &retryable)
}

// Retryable wraps err to mark it as transient. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return RetryableError{Err: err}
}

// Do runs fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; cfg.MaxAttempts <= 0 || attempt <= cfg.MaxAttempts; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}
		if cfg.MaxAttempts > 0 && attempt == cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		wait := cfg.backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func (c Config) backoff(attempt int) time.Duration {
	mult := c.Multiplier
	if mult <= 0 {
		mult = 1
	}
	wait := float64(c.InitialWait) * math.Pow(mult, float64(attempt-1))
	if c.MaxWait > 0 && wait > float64(c.MaxWait) {
		wait = float64(c.MaxWait)
	}
	if c.Jitter > 0 {
		wait += wait * c.Jitter * (rand.Float64()*2 - 1)
	}
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
