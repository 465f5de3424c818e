package retry_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pump-pill/arenax/pkg/retry"
)

func fastConfig(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithBackoffSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := retry.WithBackoff(context.Background(), fastConfig(5), zaptest.NewLogger(t), "flaky op", func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient failure %d", calls)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithBackoffExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retry.WithBackoff(context.Background(), fastConfig(3), zaptest.NewLogger(t), "doomed op", func() error {
		calls++
		return fmt.Errorf("still down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestWithBackoffRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry.WithBackoff(ctx, fastConfig(5), zaptest.NewLogger(t), "cancelled op", func() error {
		calls++
		return fmt.Errorf("never succeeds")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
