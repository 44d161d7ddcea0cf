package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls a bounded retry loop with a fixed pause between
// attempts.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// Delay is the pause before every retry. Zero retries immediately.
	Delay time.Duration

	// ShouldRetry optionally restricts which errors are retried. If nil,
	// every error except context cancellation consumes another attempt.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the search-call retry policy: 3 attempts, 2s apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
	}
}

// FromSeconds builds a RetryConfig from config values, keeping defaults for
// non-positive attempts.
func FromSeconds(maxAttempts, delaySecs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if delaySecs >= 0 {
		cfg.Delay = time.Duration(delaySecs) * time.Second
	}
	return cfg
}

// DoVal executes fn with retry logic according to cfg and returns the value
// of the first successful call. Context cancellation stops retries
// immediately.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		// Don't retry on context cancellation.
		if ctx.Err() != nil {
			return zero, lastErr
		}

		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(lastErr) {
			return zero, lastErr
		}

		// Don't sleep after the last attempt.
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		if err := sleep(ctx, cfg.Delay); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return cfg
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string, fields ...zap.Field) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			append([]zap.Field{
				zap.String("service", service),
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.String("error_class", ClassifyError(err)),
				zap.Error(err),
			}, fields...)...,
		)
	}
}
