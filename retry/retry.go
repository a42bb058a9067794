// Package retry wraps fallible operations with bounded
// exponential-backoff retries and deadline guards.
package retry

import (
	"time"

	"dikto/errs"
	"dikto/log"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 10 * time.Second
	DefaultMultiplier   = 2.0
)

type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// ShouldRetry decides whether a failed attempt gets another one.
	// Defaults to errs.IsRetryable.
	ShouldRetry func(error) bool

	// IsCancelled is polled before every attempt, so a cancel requested
	// during a backoff window is honored before the next try fires.
	IsCancelled func() bool

	// OnRetry is invoked after a failed attempt that will be retried.
	// When nil a warning is logged instead.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = DefaultMultiplier
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = errs.IsRetryable
	}
	return c
}

// Delay returns the backoff before attempt+1:
// min(initial * multiplier^(attempt-1), max).
func (c Config) Delay(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	return min(d, c.MaxDelay)
}

// sleep is swapped out in tests.
var sleep = time.Sleep

// Do runs op up to cfg.MaxAttempts times. The first success wins. A
// non-retryable failure, a cancellation, or the last attempt's failure
// ends the loop; the error returned on exhaustion is exactly the last
// attempt's error, never a wrapper.
func Do[T any](op func() (T, error), cfg Config) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if cfg.IsCancelled != nil && cfg.IsCancelled() {
			return zero, errs.NewCancelled()
		}

		v, err := op()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}
		if !cfg.ShouldRetry(err) {
			return zero, err
		}

		delay := cfg.Delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		} else {
			log.Warnf("attempt %d failed, retrying in %s: %v", attempt, delay, err)
		}
		sleep(delay)
	}
	return zero, lastErr
}
