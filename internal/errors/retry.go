package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig shapes the backoff schedule for retried operations.
type RetryConfig struct {
	MaxRetries   int           // retry attempts on top of the first try
	InitialDelay time.Duration // wait before the first retry
	MaxDelay     time.Duration // backoff growth cap
	Multiplier   float64       // delay growth factor per attempt
	Jitter       bool          // randomize waits so clients spread out
}

// DefaultRetryConfig is the schedule remote sources use: three retries,
// doubling from one second, capped at sixteen.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

// backoff computes the wait before the next attempt and the grown
// delay that follows it.
func (cfg RetryConfig) backoff(delay time.Duration) (wait, next time.Duration) {
	wait = delay
	if cfg.Jitter {
		// delay * (0.5 + rand(0, 0.5))
		wait = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
	}
	next = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
	return wait, next
}

// sleepCtx waits for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry executes a function with exponential backoff. It retries up to
// MaxRetries times; context cancellation ends the wait immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult executes a value-returning function with exponential
// backoff, capped at MaxDelay.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == cfg.MaxRetries {
			break
		}

		var wait time.Duration
		wait, delay = cfg.backoff(delay)
		if err := sleepCtx(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
