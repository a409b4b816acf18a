package async

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig controls the exponential backoff schedule. The delay
// before attempt k+1 is min(BaseDelay * 2^(k-1), MaxDelay). No jitter
// is applied.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches the reference schedule used for downstream
// network calls: 3 attempts, 1s base, capped at 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    5 * time.Second,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	return c
}

// Delay returns the backoff delay after the given 1-based failed attempt.
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Shifting past 62 bits would overflow time.Duration; the cap wins
	// long before that anyway.
	if attempt > 32 {
		return c.MaxDelay
	}
	d := c.BaseDelay << (attempt - 1)
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Retry runs op until it succeeds or the attempt budget is exhausted,
// sleeping the backoff delay between attempts. On exhaustion the
// returned error wraps the last underlying error. Context cancellation
// aborts the wait between attempts.
func Retry(ctx context.Context, logger *slog.Logger, cfg RetryConfig, name string, op func(context.Context) error) error {
	_, err := RetryValue(ctx, logger, cfg, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// RetryValue is Retry for operations that produce a value.
func RetryValue[T any](ctx context.Context, logger *slog.Logger, cfg RetryConfig, name string, op func(context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		val, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("Operation succeeded after retry",
					slog.String("operation", name),
					slog.Int("attempt", attempt),
				)
			}
			return val, nil
		}

		lastErr = err
		logger.Warn("Operation attempt failed",
			slog.String("operation", name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Any("error", err),
		)

		if attempt < cfg.MaxAttempts {
			delay := cfg.Delay(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	logger.Error("Operation failed after all attempts",
		slog.String("operation", name),
		slog.Int("attempts", cfg.MaxAttempts),
		slog.Any("error", lastErr),
	)
	return zero, fmt.Errorf("%s failed after %d attempts: %w", name, cfg.MaxAttempts, lastErr)
}
