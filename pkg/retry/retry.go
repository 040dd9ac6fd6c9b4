package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultConfig returns the retry configuration used for external
// generation calls: three attempts with 1s, 2s, 4s backoff and no jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Classifier decides whether a failed attempt is worth retrying.
type Classifier func(err error) bool

// Do executes fn with exponential backoff, retrying every failure up to
// cfg.MaxAttempts.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return DoClassified(ctx, cfg, fn, func(error) bool { return true })
}

// DoClassified executes fn with exponential backoff. After each failure
// classify decides whether the error is transient; non-retryable errors
// propagate immediately regardless of remaining attempts. The final
// error is wrapped with the number of attempts spent.
func DoClassified(ctx context.Context, cfg Config, fn func() error, classify Classifier) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("retry aborted after %d attempts: %w (last error: %v)", attempt-1, ctx.Err(), lastErr)
			}
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if classify != nil && !classify(err) {
			return fmt.Errorf("failed after %d attempts: %w", attempt, lastErr)
		}

		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("failed after %d attempts: %w", attempt, lastErr)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted after %d attempts: %w (last error: %v)", attempt, ctx.Err(), lastErr)
		case <-time.After(delay):
		}

		// Calculate next delay with exponential backoff
		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// DoWithLog executes fn with retry and invokes logFn before each backoff
// sleep.
func DoWithLog(ctx context.Context, cfg Config, serviceName string, fn func() error, classify Classifier, logFn func(attempt int, err error, nextDelay time.Duration)) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%s: retry aborted after %d attempts: %w (last error: %v)", serviceName, attempt-1, ctx.Err(), lastErr)
			}
			return fmt.Errorf("%s: retry aborted: %w", serviceName, ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if classify != nil && !classify(err) {
			return fmt.Errorf("%s: failed after %d attempts: %w", serviceName, attempt, lastErr)
		}

		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("%s: failed after %d attempts: %w", serviceName, attempt, lastErr)
		}

		if logFn != nil {
			logFn(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: retry aborted after %d attempts: %w (last error: %v)", serviceName, attempt, ctx.Err(), lastErr)
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", serviceName, cfg.MaxAttempts, lastErr)
}
