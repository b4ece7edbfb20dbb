package infra

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mm_stats/internal/domain"
)

const (
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// CalculateBackoff returns the exponential delay before retry number attempt (0-based):
// 1s, 2s, 4s, ... capped at 60s.
func CalculateBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 6 {
		return maxDelay
	}
	delay := baseDelay << uint(attempt)
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// Retry runs fn up to attempts times, sleeping CalculateBackoff between tries.
// Errors that are explicitly non-retriable stop the loop early.
func Retry(ctx context.Context, op string, attempts int, fn func(ctx context.Context) error) error {
	return retry(ctx, op, attempts, CalculateBackoff, fn)
}

func retry(ctx context.Context, op string, attempts int, backoff func(int) time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			delay := backoff(i - 1)
			GlobalMetrics.RecordRetry()
			slog.Info("Retrying", slog.String("op", op), slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("Attempt failed", slog.String("op", op), slog.Int("attempt", i+1), slog.Any("error", err))

		var re domain.RetriableError
		if errors.As(err, &re) && !re.IsRetriable() {
			return err
		}
	}
	GlobalMetrics.RecordError()
	return lastErr
}
