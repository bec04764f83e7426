package batchlib

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// Default retry configuration values
const (
	DEF_MAX_ATTEMPTS   = 3
	DEF_BASE_DELAY     = time.Second
	DEF_MAX_DELAY      = 30 * time.Second
	DEF_BACKOFF_FACTOR = 2.0
)

// RetryConfig holds the per-item retry policy of the transfer engine.
type RetryConfig struct {
	MaxAttempts   int           // Total attempts per item, including the first
	BaseDelay     time.Duration // Delay after the first failed attempt
	MaxDelay      time.Duration // Upper bound for any single delay
	JitterFactor  float64       // Random jitter factor (0-1), 0 disables jitter
	BackoffFactor float64       // Exponential backoff multiplier
	// ThrottleFactor stretches the wait after 429 and 503 responses. Values
	// up to 1 keep the plain backoff, which is the default.
	ThrottleFactor float64
}

// DefaultRetryConfig returns 3 attempts with 1s, 2s delays and no jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   DEF_MAX_ATTEMPTS,
		BaseDelay:     DEF_BASE_DELAY,
		MaxDelay:      DEF_MAX_DELAY,
		BackoffFactor: DEF_BACKOFF_FACTOR,
	}
}

// ErrorCategory classifies errors for retry decisions
type ErrorCategory int

const (
	ErrCategoryCanceled  ErrorCategory = iota // forced cancellation, never retried
	ErrCategoryRetryable                      // transport, status and filesystem errors
	ErrCategoryThrottled                      // 429 and 503 responses
)

// ClassifyError determines how an error should be handled for retry purposes.
// Every failure except forced cancellation is retryable: filesystem errors
// included, since their cause may be transient.
func ClassifyError(err error) ErrorCategory {
	if errors.Is(err, context.Canceled) {
		return ErrCategoryCanceled
	}
	var se *HTTPStatusError
	if errors.As(err, &se) {
		if se.Code == http.StatusTooManyRequests || se.Code == http.StatusServiceUnavailable {
			return ErrCategoryThrottled
		}
	}
	return ErrCategoryRetryable
}

// CalculateBackoff computes the delay after the given failed attempt (1-based):
// BaseDelay * BackoffFactor^(attempt-1), capped at MaxDelay.
func (c *RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := c.BackoffFactor
	if factor <= 0 {
		factor = DEF_BACKOFF_FACTOR
	}
	delay := float64(c.BaseDelay) * math.Pow(factor, float64(attempt-1))

	if c.JitterFactor > 0 {
		jitter := c.JitterFactor * (2*rand.Float64() - 1)
		delay *= (1 + jitter)
	}
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.BaseDelay)
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether another attempt follows the failed attempt.
func (c *RetryConfig) ShouldRetry(attempt int, err error) bool {
	if ClassifyError(err) == ErrCategoryCanceled {
		return false
	}
	limit := c.MaxAttempts
	if limit <= 0 {
		limit = DEF_MAX_ATTEMPTS
	}
	return attempt < limit
}

// WaitForRetry sleeps for the backoff of the failed attempt. The wait ends
// early when ctx is canceled (returning ctx.Err()) or when ctl receives a
// signal (returning that signal).
func (c *RetryConfig) WaitForRetry(ctx context.Context, ctl *Control, attempt int, err error) (Signal, error) {
	delay := c.CalculateBackoff(attempt)
	if c.ThrottleFactor > 1 && ClassifyError(err) == ErrCategoryThrottled {
		delay = time.Duration(float64(delay) * c.ThrottleFactor)
		if c.MaxDelay > 0 && delay > c.MaxDelay {
			delay = c.MaxDelay
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return SignalNone, ctx.Err()
	case <-ctl.Done():
		return ctl.Signal(), nil
	case <-timer.C:
		return SignalNone, nil
	}
}
