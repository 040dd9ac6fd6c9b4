package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts:   maxAttempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestDoClassified_RetryableThenSuccess(t *testing.T) {
	calls := 0
	rateLimited := errors.New("rate limited")

	err := DoClassified(context.Background(), fastConfig(3), func() error {
		calls++
		if calls == 1 {
			return rateLimited
		}
		return nil
	}, func(error) bool { return true })

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoClassified_PersistentFailureExhaustsAttempts(t *testing.T) {
	calls := 0
	serverErr := errors.New("status 500")

	err := DoClassified(context.Background(), fastConfig(2), func() error {
		calls++
		return serverErr
	}, func(error) bool { return true })

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, serverErr)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestDoClassified_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	malformed := errors.New("missing field")

	err := DoClassified(context.Background(), fastConfig(5), func() error {
		calls++
		return malformed
	}, func(error) bool { return false })

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, malformed)
	assert.Contains(t, err.Error(), "after 1 attempts")
}

func TestDoClassified_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	err := DoClassified(context.Background(), fastConfig(3), func() error {
		calls++
		return nil
	}, func(error) bool { return true })

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoClassified_ContextCancelledStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := DoClassified(ctx, fastConfig(5), func() error {
		calls++
		cancel()
		return errors.New("timeout")
	}, func(error) bool { return true })

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.InitialDelay)
	assert.Equal(t, 2.0, cfg.BackoffFactor)
}
