package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTimeout_FastOperation(t *testing.T) {
	val, err := WithTimeout(context.Background(), 1*time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestWithTimeout_OperationError(t *testing.T) {
	opErr := errors.New("downstream failure")
	_, err := WithTimeout(context.Background(), 1*time.Second, func(ctx context.Context) (int, error) {
		return 0, opErr
	})

	assert.ErrorIs(t, err, opErr)
}

func TestWithTimeout_SlowOperation(t *testing.T) {
	start := time.Now()
	_, err := WithTimeout(context.Background(), 30*time.Millisecond, func(ctx context.Context) (int, error) {
		// Ignores its context entirely.
		time.Sleep(500 * time.Millisecond)
		return 1, nil
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestWithTimeout_DeadlinePropagatedIntoOperation(t *testing.T) {
	canceled := make(chan struct{})

	_, err := WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(canceled)
		return 0, ctx.Err()
	})

	require.Error(t, err)

	select {
	case <-canceled:
	case <-time.After(1 * time.Second):
		t.Fatal("operation context was never canceled")
	}
}

func TestWithTimeout_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := WithTimeout(ctx, 5*time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}
