package modelselection

import (
	"context"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabfit/core/model"
	"github.com/YuminosukeSato/tabfit/pkg/errors"
)

// meanRegressor is a minimal estimator for harness tests: it learns the
// training-target mean and predicts it plus a fixed bias, so its error is
// fully controlled by the bias.
type meanRegressor struct {
	bias     float64
	fitDelay time.Duration
	fitErr   error

	mean   float64
	fitted bool
}

func (m *meanRegressor) Fit(X, y mat.Matrix) error {
	if m.fitErr != nil {
		return m.fitErr
	}
	if m.fitDelay > 0 {
		time.Sleep(m.fitDelay)
	}
	n, _ := y.Dims()
	var sum float64
	for i := 0; i < n; i++ {
		sum += y.At(i, 0)
	}
	m.mean = sum / float64(n)
	m.fitted = true
	return nil
}

func (m *meanRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.fitted {
		return nil, errors.NewNotFittedError("meanRegressor", "Predict")
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, m.mean+m.bias)
	}
	return out, nil
}

func (m *meanRegressor) String() string { return "meanRegressor" }

// syntheticData builds an n-row feature matrix and a noisy target.
func syntheticData(n, p int, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	X := mat.NewDense(n, p, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		var signal float64
		for j := 0; j < p; j++ {
			v := rng.NormFloat64()
			X.Set(i, j, v)
			signal += float64(j+1) * v
		}
		y.Set(i, 0, signal+rng.NormFloat64())
	}
	return X, y
}

func TestCrossValidate(t *testing.T) {
	X, y := syntheticData(200, 3, 42)

	t.Run("produces one error per fold and aggregates after all folds", func(t *testing.T) {
		record, err := CrossValidate(context.Background(),
			func() model.Regressor { return &meanRegressor{} },
			X, y, CVConfig{K: 5, Seed: 42, ModelName: "mean"})
		require.NoError(t, err)

		require.Len(t, record.FoldErrors, 5)
		var sum float64
		for _, foldErr := range record.FoldErrors {
			assert.False(t, math.IsNaN(foldErr))
			assert.GreaterOrEqual(t, foldErr, 0.0)
			sum += foldErr
		}
		assert.InDelta(t, sum/5, record.MeanError, 1e-12)

		var sumSq float64
		for _, foldErr := range record.FoldErrors {
			diff := foldErr - record.MeanError
			sumSq += diff * diff
		}
		assert.InDelta(t, math.Sqrt(sumSq/4), record.StdError, 1e-12,
			"std is the sample standard deviation over folds")
		assert.Equal(t, "mean", record.Model)
	})

	t.Run("creates a fresh model for every fold", func(t *testing.T) {
		var created atomic.Int64
		_, err := CrossValidate(context.Background(),
			func() model.Regressor {
				created.Add(1)
				return &meanRegressor{}
			},
			X, y, CVConfig{K: 7, Seed: 42})
		require.NoError(t, err)
		assert.Equal(t, int64(7), created.Load())
	})

	t.Run("is deterministic across runs", func(t *testing.T) {
		factory := func() model.Regressor { return &meanRegressor{} }
		first, err := CrossValidate(context.Background(), factory, X, y,
			CVConfig{K: 5, Seed: 42, Workers: 4})
		require.NoError(t, err)
		second, err := CrossValidate(context.Background(), factory, X, y,
			CVConfig{K: 5, Seed: 42, Workers: 4})
		require.NoError(t, err)
		assert.Equal(t, first.FoldErrors, second.FoldErrors)
		assert.Equal(t, first.MeanError, second.MeanError)
		assert.Equal(t, first.StdError, second.StdError)
	})

	t.Run("row count mismatch is a dimension error", func(t *testing.T) {
		shortY := mat.NewDense(10, 1, nil)
		_, err := CrossValidate(context.Background(),
			func() model.Regressor { return &meanRegressor{} },
			X, shortY, CVConfig{K: 5, Seed: 42})
		require.Error(t, err)
		var dimErr *errors.DimensionError
		assert.True(t, errors.As(err, &dimErr))
	})

	t.Run("fit failure surfaces as a fit error", func(t *testing.T) {
		_, err := CrossValidate(context.Background(),
			func() model.Regressor {
				return &meanRegressor{fitErr: errors.New("singular design matrix")}
			},
			X, y, CVConfig{K: 5, Seed: 42})
		require.Error(t, err)
		var fitErr *errors.FitError
		assert.True(t, errors.As(err, &fitErr))
	})

	t.Run("fit exceeding the ceiling is a configuration error", func(t *testing.T) {
		_, err := CrossValidate(context.Background(),
			func() model.Regressor {
				return &meanRegressor{fitDelay: 200 * time.Millisecond}
			},
			X, y, CVConfig{K: 5, Seed: 42, FitTimeout: 10 * time.Millisecond})
		require.Error(t, err)
		var cfgErr *errors.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "fit_timeout", cfgErr.Param)

		var fitErr *errors.FitError
		assert.False(t, errors.As(err, &fitErr), "a timeout is fatal, not an isolated fit failure")
	})

	t.Run("cancelled context returns the context error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := CrossValidate(ctx,
			func() model.Regressor { return &meanRegressor{} },
			X, y, CVConfig{K: 5, Seed: 42})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
