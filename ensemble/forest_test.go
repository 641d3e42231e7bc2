package ensemble

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabfit/pkg/errors"
)

func forestData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 4, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := rng.Float64() * 10
		b := rng.Float64() * 10
		c := rng.Float64()
		d := rng.Float64()
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		X.Set(i, 2, c)
		X.Set(i, 3, d)
		y.Set(i, 0, 2*a-b+rng.NormFloat64()*0.1)
	}
	return X, y
}

func TestRandomForestRegressor(t *testing.T) {
	t.Run("learns a nonlinear-capable fit with positive R2", func(t *testing.T) {
		X, y := forestData(400, 42)
		rf := NewRandomForestRegressor(WithNEstimators(30), WithSeed(42))
		require.NoError(t, rf.Fit(X, y))

		score, err := rf.Score(X, y)
		require.NoError(t, err)
		assert.Greater(t, score, 0.9, "in-sample R2 should be high on a smooth signal")
	})

	t.Run("predictions have one row per input", func(t *testing.T) {
		X, y := forestData(200, 1)
		rf := NewRandomForestRegressor(WithNEstimators(10), WithSeed(1))
		require.NoError(t, rf.Fit(X, y))

		pred, err := rf.Predict(X)
		require.NoError(t, err)
		r, c := pred.Dims()
		assert.Equal(t, 200, r)
		assert.Equal(t, 1, c)
	})

	t.Run("same seed reproduces predictions exactly", func(t *testing.T) {
		X, y := forestData(300, 7)
		probe, _ := forestData(50, 8)

		first := NewRandomForestRegressor(WithNEstimators(20), WithSeed(7))
		require.NoError(t, first.Fit(X, y))
		second := NewRandomForestRegressor(WithNEstimators(20), WithSeed(7))
		require.NoError(t, second.Fit(X, y))

		p1, err := first.Predict(probe)
		require.NoError(t, err)
		p2, err := second.Predict(probe)
		require.NoError(t, err)
		assert.Equal(t, p1.(*mat.Dense).RawMatrix().Data, p2.(*mat.Dense).RawMatrix().Data,
			"tree RNGs derive from the seed, not from scheduling")
	})

	t.Run("different seed changes the forest", func(t *testing.T) {
		X, y := forestData(300, 7)
		probe, _ := forestData(50, 8)

		first := NewRandomForestRegressor(WithNEstimators(20), WithSeed(1))
		require.NoError(t, first.Fit(X, y))
		second := NewRandomForestRegressor(WithNEstimators(20), WithSeed(2))
		require.NoError(t, second.Fit(X, y))

		p1, err := first.Predict(probe)
		require.NoError(t, err)
		p2, err := second.Predict(probe)
		require.NoError(t, err)
		assert.NotEqual(t, p1.(*mat.Dense).RawMatrix().Data, p2.(*mat.Dense).RawMatrix().Data)
	})

	t.Run("max features limits the per-split candidate set", func(t *testing.T) {
		X, y := forestData(200, 3)
		rf := NewRandomForestRegressor(WithNEstimators(15), WithMaxFeatures(2), WithSeed(3))
		require.NoError(t, rf.Fit(X, y))

		score, err := rf.Score(X, y)
		require.NoError(t, err)
		assert.Greater(t, score, 0.5)
	})

	t.Run("predict before fit", func(t *testing.T) {
		rf := NewRandomForestRegressor()
		_, err := rf.Predict(mat.NewDense(1, 4, nil))
		require.Error(t, err)
		var notFitted *errors.NotFittedError
		assert.True(t, errors.As(err, &notFitted))
	})

	t.Run("feature count mismatch at predict", func(t *testing.T) {
		X, y := forestData(100, 5)
		rf := NewRandomForestRegressor(WithNEstimators(5), WithSeed(5))
		require.NoError(t, rf.Fit(X, y))

		_, err := rf.Predict(mat.NewDense(1, 2, nil))
		require.Error(t, err)
		var dimErr *errors.DimensionError
		assert.True(t, errors.As(err, &dimErr))
	})

	t.Run("invalid hyperparameters", func(t *testing.T) {
		X, y := forestData(50, 9)
		tests := []struct {
			name string
			rf   *RandomForestRegressor
		}{
			{"n_estimators below 1", NewRandomForestRegressor(WithNEstimators(0))},
			{"min_samples_split below 2", NewRandomForestRegressor(WithMinSamplesSplit(1))},
			{"negative max_features", NewRandomForestRegressor(WithMaxFeatures(-1))},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.rf.Fit(X, y)
				require.Error(t, err)
				var cfgErr *errors.ConfigError
				assert.True(t, errors.As(err, &cfgErr))
			})
		}
	})

	t.Run("constant target predicts the constant", func(t *testing.T) {
		X, _ := forestData(100, 11)
		y := mat.NewDense(100, 1, nil)
		for i := 0; i < 100; i++ {
			y.Set(i, 0, 5.0)
		}

		rf := NewRandomForestRegressor(WithNEstimators(5), WithSeed(11))
		require.NoError(t, rf.Fit(X, y))

		pred, err := rf.Predict(X)
		require.NoError(t, err)
		for i := 0; i < 100; i++ {
			assert.Equal(t, 5.0, pred.At(i, 0))
		}
	})
}
