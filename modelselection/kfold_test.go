package modelselection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabfit/pkg/errors"
)

func TestKFoldSplit(t *testing.T) {
	t.Run("every index held out exactly once", func(t *testing.T) {
		folds, err := NewKFold(5, 42).Split(100)
		require.NoError(t, err)
		require.Len(t, folds, 5)

		seen := make(map[int]int)
		for _, fold := range folds {
			for _, idx := range fold.TestIndices {
				seen[idx]++
			}
		}
		assert.Len(t, seen, 100)
		for idx, count := range seen {
			assert.Equal(t, 1, count, "index %d held out %d times", idx, count)
		}
	})

	t.Run("train and test are disjoint and cover all rows", func(t *testing.T) {
		folds, err := NewKFold(4, 7).Split(20)
		require.NoError(t, err)

		for i, fold := range folds {
			assert.Equal(t, 20, len(fold.TrainIndices)+len(fold.TestIndices))

			inTest := make(map[int]bool, len(fold.TestIndices))
			for _, idx := range fold.TestIndices {
				inTest[idx] = true
			}
			for _, idx := range fold.TrainIndices {
				assert.False(t, inTest[idx], "fold %d: index %d in both train and test", i, idx)
			}
		}
	})

	t.Run("fold sizes differ by at most one", func(t *testing.T) {
		// 23 rows over 5 folds: three folds of 5, two of 4.
		folds, err := NewKFold(5, 1).Split(23)
		require.NoError(t, err)

		sizes := make([]int, len(folds))
		for i, fold := range folds {
			sizes[i] = len(fold.TestIndices)
		}
		assert.Equal(t, []int{5, 5, 5, 4, 4}, sizes)
	})

	t.Run("same n k seed gives identical folds", func(t *testing.T) {
		first, err := NewKFold(10, 99).Split(1000)
		require.NoError(t, err)
		second, err := NewKFold(10, 99).Split(1000)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("different seed gives a different shuffle", func(t *testing.T) {
		first, err := NewKFold(5, 1).Split(100)
		require.NoError(t, err)
		second, err := NewKFold(5, 2).Split(100)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("k below 2 is a configuration error", func(t *testing.T) {
		_, err := NewKFold(1, 42).Split(100)
		require.Error(t, err)
		var cfgErr *errors.ConfigError
		assert.True(t, errors.As(err, &cfgErr))
	})

	t.Run("k above n is a configuration error", func(t *testing.T) {
		_, err := NewKFold(11, 42).Split(10)
		require.Error(t, err)
		var cfgErr *errors.ConfigError
		assert.True(t, errors.As(err, &cfgErr))
	})

	t.Run("k equal to n is leave-one-out", func(t *testing.T) {
		folds, err := NewKFold(5, 3).Split(5)
		require.NoError(t, err)
		require.Len(t, folds, 5)
		for _, fold := range folds {
			assert.Len(t, fold.TestIndices, 1)
			assert.Len(t, fold.TrainIndices, 4)
		}
	})
}
