// Package retry retries transient failures with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrMaxAttemptsExceeded is returned when every attempt failed with a retryable error.
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

// Config configures retry behavior.
type Config struct {
	// MaxAttempts includes the initial attempt.
	MaxAttempts int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps exponential backoff.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// IsRetryable determines if an error should be retried.
	IsRetryable func(error) bool
	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		IsRetryable:  DefaultIsRetryable,
	}
}

// Retryable marks err as retryable regardless of its message.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

var retryablePatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"no such host",
	"temporary failure",
	"network is unreachable",
	"eof",
}

// DefaultIsRetryable treats errors wrapped with Retryable and common network
// failures as retryable. Context cancellation never is.
func DefaultIsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var re *retryableError
	if errors.As(err, &re) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

func (c *Config) setDefaults() {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.IsRetryable == nil {
		c.IsRetryable = def.IsRetryable
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out.
func Do(ctx context.Context, config Config, fn func(context.Context) error) error {
	config.setDefaults()

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("retry cancelled: %w", ctxErr)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !config.IsRetryable(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		delay := backoff(config, attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, config.MaxAttempts, lastErr)
}

func backoff(config Config, attempt int) time.Duration {
	d := time.Duration(float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1)))
	if d > config.MaxDelay {
		return config.MaxDelay
	}
	return d
}
