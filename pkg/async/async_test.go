package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/pkg/async"
)

func TestAsync(t *testing.T) {
	t.Parallel()

	t.Run("returns result", func(t *testing.T) {
		t.Parallel()
		f := async.Async(context.Background(), 21, func(_ context.Context, n int) (int, error) {
			return n * 2, nil
		})
		got, err := f.Await()
		require.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.True(t, f.IsComplete())
	})

	t.Run("propagates error", func(t *testing.T) {
		t.Parallel()
		want := errors.New("postmark: 422")
		f := async.Async(context.Background(), "a@x.com", func(_ context.Context, _ string) (struct{}, error) {
			return struct{}{}, want
		})
		_, err := f.Await()
		assert.ErrorIs(t, err, want)
	})

	t.Run("timeout leaves work running", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		f := async.Async(context.Background(), 0, func(_ context.Context, _ int) (int, error) {
			<-release
			return 1, nil
		})

		_, err := f.AwaitWithTimeout(10 * time.Millisecond)
		assert.ErrorIs(t, err, async.ErrTimeout)
		assert.False(t, f.IsComplete())

		close(release)
		got, err := f.Await()
		require.NoError(t, err)
		assert.Equal(t, 1, got)
	})

	t.Run("cancelled context skips work", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		called := false
		f := async.Async(ctx, 0, func(_ context.Context, _ int) (int, error) {
			called = true
			return 0, nil
		})
		_, err := f.Await()
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("panic is recovered", func(t *testing.T) {
		t.Parallel()
		f := async.Async(context.Background(), 0, func(_ context.Context, _ int) (int, error) {
			panic("boom")
		})
		_, err := f.Await()
		assert.ErrorIs(t, err, async.ErrPanic)
	})
}

func TestWaitAll(t *testing.T) {
	t.Parallel()

	double := func(_ context.Context, n int) (int, error) {
		if n < 0 {
			return 0, errors.New("negative")
		}
		return n * 2, nil
	}

	results, err := async.WaitAll(
		async.Async(context.Background(), 1, double),
		async.Async(context.Background(), 2, double),
	)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, results)

	results, err = async.WaitAll(
		async.Async(context.Background(), 3, double),
		async.Async(context.Background(), -1, double),
	)
	assert.Error(t, err)
	assert.Equal(t, []int{6, 0}, results)
}
