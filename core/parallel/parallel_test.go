package parallel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabfit/pkg/errors"
)

func TestParallelize(t *testing.T) {
	t.Run("covers the full range exactly once", func(t *testing.T) {
		const items = 1000
		counts := make([]int32, items)

		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&counts[i], 1)
			}
		})

		for i, count := range counts {
			require.Equal(t, int32(1), count, "index %d visited %d times", i, count)
		}
	})

	t.Run("zero items is a no-op", func(t *testing.T) {
		called := false
		Parallelize(0, func(start, end int) { called = true })
		assert.False(t, called)
	})
}

func TestParallelizeWithThreshold(t *testing.T) {
	t.Run("runs sequentially below the threshold", func(t *testing.T) {
		var calls int
		ParallelizeWithThreshold(10, 100, func(start, end int) {
			calls++
			assert.Equal(t, 0, start)
			assert.Equal(t, 10, end)
		})
		assert.Equal(t, 1, calls, "a single sequential chunk")
	})

	t.Run("still covers the range above the threshold", func(t *testing.T) {
		const items = 500
		counts := make([]int32, items)
		ParallelizeWithThreshold(items, 100, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&counts[i], 1)
			}
		})
		for i, count := range counts {
			require.Equal(t, int32(1), count, "index %d", i)
		}
	})
}

func TestPool(t *testing.T) {
	t.Run("defaults to the CPU count", func(t *testing.T) {
		assert.Greater(t, NewPool(0).Workers(), 0)
		assert.Equal(t, 3, NewPool(3).Workers())
	})

	t.Run("runs every task exactly once", func(t *testing.T) {
		const n = 200
		counts := make([]int32, n)

		err := NewPool(4).Run(context.Background(), n, func(i int) error {
			atomic.AddInt32(&counts[i], 1)
			return nil
		})
		require.NoError(t, err)
		for i, count := range counts {
			require.Equal(t, int32(1), count, "task %d ran %d times", i, count)
		}
	})

	t.Run("returns the first error by index order", func(t *testing.T) {
		errA := errors.New("a")
		errB := errors.New("b")

		err := NewPool(4).Run(context.Background(), 10, func(i int) error {
			switch i {
			case 3:
				return errA
			case 7:
				return errB
			default:
				return nil
			}
		})
		assert.Equal(t, errA, err)
	})

	t.Run("zero tasks", func(t *testing.T) {
		err := NewPool(4).Run(context.Background(), 0, func(i int) error {
			t.Fatal("task must not run")
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("cancellation stops dispatch and reports the context error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		var started atomic.Int32
		var release sync.WaitGroup
		release.Add(1)

		done := make(chan error, 1)
		go func() {
			done <- NewPool(2).Run(ctx, 100, func(i int) error {
				started.Add(1)
				release.Wait()
				return nil
			})
		}()

		// Let the two workers pick up tasks, then cancel.
		assert.Eventually(t, func() bool { return started.Load() >= 2 },
			time.Second, time.Millisecond)
		cancel()
		release.Done()

		err := <-done
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Less(t, started.Load(), int32(100), "cancellation must stop dispatch early")
	})

	t.Run("already cancelled context runs nothing new", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var started atomic.Int32
		err := NewPool(2).Run(ctx, 50, func(i int) error {
			started.Add(1)
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
