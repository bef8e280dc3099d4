// Package retry implements the exponential-backoff retry executor
// (component C6): it repeats an operation, classifying errors as
// retryable or terminal, and sleeping with jitter between attempts.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/arlofen/fetchcore/internal/core/task"
	"github.com/arlofen/fetchcore/internal/utils"
)

// Config tunes the backoff schedule.
type Config struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultConfig returns the engine's default retry policy: 5 retries,
// 1s initial delay, 30s cap, multiplier 2, jitter on.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        5,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		Jitter:            true,
	}
}

// AttemptFunc performs one attempt of the operation.
type AttemptFunc func(ctx context.Context) error

// Run repeats fn up to cfg.MaxRetries+1 times, sleeping between
// attempts per the configured backoff. Non-retryable errors (per
// task.IsNonRetryable) are surfaced immediately. If err carries a
// *task.ServerError with a RetryAfter value, that value lower-bounds
// the computed backoff delay for the next attempt.
func Run(ctx context.Context, cfg Config, opName string, fn AttemptFunc) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &task.CancelledError{}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if task.IsNonRetryable(err) {
			utils.Debug("retry[%s]: non-retryable error, surfacing: %v", opName, err)
			return err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		delay := calculateDelay(cfg, attempt+1)
		if se, ok := err.(*task.ServerError); ok && se.RetryAfter > 0 {
			floor := time.Duration(se.RetryAfter) * time.Second
			if floor > delay {
				delay = floor
			}
		}

		utils.Debug("retry[%s]: attempt %d failed (%v), sleeping %v", opName, attempt+1, err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &task.CancelledError{}
		case <-timer.C:
		}
	}

	return lastErr
}

// calculateDelay computes min(initial * multiplier^(attempt-1), max)
// scaled by jitter in [0.5, 1.5] when enabled.
func calculateDelay(cfg Config, attempt int) time.Duration {
	raw := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	delay := time.Duration(raw)
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	if cfg.Jitter {
		factor := 0.5 + rand.Float64()
		delay = time.Duration(float64(delay) * factor)
	}
	return delay
}
