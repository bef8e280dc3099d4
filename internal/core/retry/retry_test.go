package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arlofen/fetchcore/internal/core/task"
)

func fastConfig() Config {
	return Config{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2,
		Jitter:            false,
	}
}

func TestRunSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Run(context.Background(), fastConfig(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunRetriesTransientError(t *testing.T) {
	calls := 0
	err := Run(context.Background(), fastConfig(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &task.NetworkError{Op: "read"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunSurfacesNonRetryableImmediately(t *testing.T) {
	calls := 0
	err := Run(context.Background(), fastConfig(), "op", func(ctx context.Context) error {
		calls++
		return &task.InvalidURLError{URL: "x"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunExhaustsRetries(t *testing.T) {
	calls := 0
	err := Run(context.Background(), fastConfig(), "op", func(ctx context.Context) error {
		calls++
		return &task.NetworkError{Op: "read"}
	})
	require.Error(t, err)
	assert.Equal(t, fastConfig().MaxRetries+1, calls)
}

func TestRunRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, fastConfig(), "op", func(ctx context.Context) error {
		t.Fatal("should not be called on a pre-cancelled context")
		return nil
	})
	var cancelled *task.CancelledError
	assert.ErrorAs(t, err, &cancelled)
}

func TestCalculateDelayCapsAtMax(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 10, Jitter: false}
	d := calculateDelay(cfg, 5)
	assert.Equal(t, cfg.MaxDelay, d)
}
