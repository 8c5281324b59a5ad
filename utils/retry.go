package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetryBudgetExhausted is returned by RateLimitPolicy.Wait once MaxRetries
// consecutive waits have been spent.
var ErrRetryBudgetExhausted = errors.New("rate limit retry budget exhausted")

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RateLimitPolicy decides how long to back off after an HTTP 429 and whether
// another attempt is allowed.
type RateLimitPolicy struct {
	// MaxRetries bounds consecutive waits for one request. 0 means unbounded.
	MaxRetries int
	// BackoffCap caps a single wait. 0 means the advertised delay is honoured as-is.
	BackoffCap time.Duration
	// DefaultDelay is used when the server does not advertise Retry-After.
	DefaultDelay time.Duration
	Sleep        SleepFunc
}

// Delay returns the wait for an advertised Retry-After value (0 when absent).
func (p *RateLimitPolicy) Delay(advertised time.Duration) time.Duration {
	d := advertised
	if d <= 0 {
		d = p.DefaultDelay
		if d <= 0 {
			d = 60 * time.Second
		}
	}
	if p.BackoffCap > 0 && d > p.BackoffCap {
		d = p.BackoffCap
	}
	return d
}

// Wait sleeps for the policy delay. attempt is the 1-based count of 429s seen
// for the current request.
func (p *RateLimitPolicy) Wait(ctx context.Context, attempt int, advertised time.Duration) error {
	if p.MaxRetries > 0 && attempt > p.MaxRetries {
		return fmt.Errorf("%w after %d attempts", ErrRetryBudgetExhausted, p.MaxRetries)
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return sleep(ctx, p.Delay(advertised))
}

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *Logger
	Sleep       SleepFunc
}

// Do executes fn with exponential back-off retry logic.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func() error) error {
	var lastErr error
	delay := r.BaseDelay
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < r.MaxAttempts {
			if r.Logger != nil {
				r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
					operationName, attempt, r.MaxAttempts, lastErr, delay)
			}
			if err := sleep(ctx, delay); err != nil {
				return fmt.Errorf("%s: %w", operationName, err)
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, r.MaxAttempts, lastErr)
}
