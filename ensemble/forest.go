// Package ensemble implements a random forest regressor: bagged CART
// regression trees with per-split random feature subsets. It is one of the
// pluggable model families the selection harness can search over.
package ensemble

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabfit/core/model"
	"github.com/YuminosukeSato/tabfit/core/parallel"
	"github.com/YuminosukeSato/tabfit/pkg/errors"
)

// RandomForestRegressor averages the predictions of NEstimators bootstrap
// trees. Tree i derives its RNG from Seed+i, so a fitted forest is
// reproducible for a given seed regardless of goroutine scheduling.
type RandomForestRegressor struct {
	state *model.StateManager

	// Hyperparameters
	NEstimators     int
	MaxDepth        int // 0 => no limit
	MinSamplesSplit int
	MaxFeatures     int // 0 => all features; clamped to the feature count
	Bootstrap       bool
	Seed            int64

	NFeatures int

	trees []*regressionTree
}

// ForestOption is a functional option for RandomForestRegressor.
type ForestOption func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.NEstimators = n }
}

// WithMaxDepth sets the maximum tree depth. Zero means unlimited.
func WithMaxDepth(d int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxDepth = d }
}

// WithMinSamplesSplit sets the minimum node size eligible for splitting.
func WithMinSamplesSplit(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MinSamplesSplit = n }
}

// WithMaxFeatures sets the number of features considered per split.
// Zero means all features.
func WithMaxFeatures(k int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxFeatures = k }
}

// WithBootstrap controls bootstrap sampling of training rows.
func WithBootstrap(b bool) ForestOption {
	return func(rf *RandomForestRegressor) { rf.Bootstrap = b }
}

// WithSeed sets the forest's RNG seed.
func WithSeed(seed int64) ForestOption {
	return func(rf *RandomForestRegressor) { rf.Seed = seed }
}

// NewRandomForestRegressor creates a forest with sensible defaults.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		state:           model.NewStateManager(),
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MaxFeatures:     0,
		Bootstrap:       true,
		Seed:            42,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// Fit trains the forest. Trees are grown in parallel; each tree samples
// its bootstrap indices and feature subsets from its own seeded RNG.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.Wrap(errors.ErrEmptyData, "RandomForestRegressor.Fit")
	}
	if ry != r {
		return errors.NewDimensionError("RandomForestRegressor.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("RandomForestRegressor.Fit", "y must be a column vector")
	}
	if rf.NEstimators < 1 {
		return errors.NewConfigError("n_estimators", "must be at least 1", rf.NEstimators)
	}
	if rf.MinSamplesSplit < 2 {
		return errors.NewConfigError("min_samples_split", "must be at least 2", rf.MinSamplesSplit)
	}
	if rf.MaxFeatures < 0 {
		return errors.NewConfigError("max_features", "must be non-negative", rf.MaxFeatures)
	}

	rows := toRows(X)
	labels := make([]float64, r)
	for i := 0; i < r; i++ {
		labels[i] = y.At(i, 0)
	}

	maxFeatures := rf.MaxFeatures
	if maxFeatures > c {
		maxFeatures = c
	}

	trees := make([]*regressionTree, rf.NEstimators)
	var wg sync.WaitGroup
	for i := 0; i < rf.NEstimators; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			seed := uint64(rf.Seed) + uint64(idx)
			rng := rand.New(rand.NewPCG(seed, seed))

			indices := make([]int, r)
			for j := 0; j < r; j++ {
				if rf.Bootstrap {
					indices[j] = rng.IntN(r)
				} else {
					indices[j] = j
				}
			}

			tree := &regressionTree{
				maxDepth:        rf.MaxDepth,
				minSamplesSplit: rf.MinSamplesSplit,
				maxFeatures:     maxFeatures,
			}
			tree.fit(rows, labels, indices, rng)
			trees[idx] = tree
		}(i)
	}
	wg.Wait()

	rf.trees = trees
	rf.NFeatures = c
	rf.state.SetDimensions(c, r)
	rf.state.SetFitted()
	return nil
}

// Predict averages the per-tree predictions for each input row.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rf.state.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}

	r, c := X.Dims()
	if c != rf.NFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", rf.NFeatures, c, 1)
	}

	rows := toRows(X)
	predictions := mat.NewDense(r, 1, nil)

	const parallelThreshold = 256
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			var sum float64
			for _, tree := range rf.trees {
				sum += tree.predict(rows[i])
			}
			predictions.Set(i, 0, sum/float64(len(rf.trees)))
		}
	})

	return predictions, nil
}

// Score returns the coefficient of determination R² on the given data.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	if !rf.state.IsFitted() {
		return 0, errors.NewNotFittedError("RandomForestRegressor", "Score")
	}

	yPred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}

	r, _ := y.Dims()
	var yMean float64
	for i := 0; i < r; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(r)

	var tss, rss float64
	for i := 0; i < r; i++ {
		trueVal := y.At(i, 0)
		predVal := yPred.At(i, 0)
		tss += (trueVal - yMean) * (trueVal - yMean)
		rss += (trueVal - predVal) * (trueVal - predVal)
	}
	if tss == 0 {
		return 0, errors.Newf("total sum of squares is zero")
	}
	return 1 - rss/tss, nil
}

// GetParams returns the estimator's hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"max_depth":         rf.MaxDepth,
		"min_samples_split": rf.MinSamplesSplit,
		"max_features":      rf.MaxFeatures,
		"bootstrap":         rf.Bootstrap,
		"seed":              rf.Seed,
	}
}

// String returns a short description of the estimator.
func (rf *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_features=%d)",
		rf.NEstimators, rf.MaxFeatures)
}

func toRows(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	if dense, ok := X.(*mat.Dense); ok {
		rows := make([][]float64, r)
		for i := 0; i < r; i++ {
			rows[i] = dense.RawRowView(i)
		}
		return rows
	}

	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = X.At(i, j)
		}
		rows[i] = row
	}
	return rows
}
