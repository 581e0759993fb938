package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(4*time.Second, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(maxBackoff, maxBackoff))
}

func TestSleepWithContext(t *testing.T) {
	assert.True(t, sleepWithContext(context.Background(), 0))
	assert.True(t, sleepWithContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepWithContext(ctx, time.Hour))
}

var errFlaky = errors.New("flaky")

func TestRetry(t *testing.T) {
	always := func(error) bool { return true }

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 3, time.Millisecond, always, func() error {
			calls++
			if calls < 3 {
				return errFlaky
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 2, time.Millisecond, always, func() error {
			calls++
			return errFlaky
		})
		require.ErrorIs(t, err, errFlaky)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), 5, time.Millisecond, func(error) bool { return false }, func() error {
			calls++
			return errFlaky
		})
		require.ErrorIs(t, err, errFlaky)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		err := retry(ctx, 5, time.Hour, always, func() error {
			cancel()
			return errFlaky
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}
