// Package modelselection implements the cross-validation and hyperparameter
// search harness: deterministic k-fold splitting, repeated model fitting
// with leak-free fold isolation, exhaustive grid enumeration with
// deterministic ranking, and the one-shot final evaluation.
package modelselection

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/tabfit/pkg/errors"
)

// Fold holds the row indices for one cross-validation round.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold partitions n row indices into k disjoint folds whose sizes differ
// by at most one. The partition is a pure function of (n, k, seed): calling
// Split twice with the same inputs yields identical folds, which is what
// makes error comparisons across candidate models valid.
type KFold struct {
	K    int
	Seed int64
}

// NewKFold creates a splitter for k folds with the given shuffle seed.
func NewKFold(k int, seed int64) *KFold {
	return &KFold{K: k, Seed: seed}
}

// Split returns the k folds over indices 0..n-1. Every index appears in
// exactly one fold's test set.
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.K < 2 {
		return nil, errors.NewConfigError("k", "must be at least 2", kf.K)
	}
	if kf.K > n {
		return nil, errors.NewConfigError("k", "cannot exceed the number of rows", kf.K)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	r := rand.New(rand.NewPCG(uint64(kf.Seed), uint64(kf.Seed)))
	r.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	folds := make([]Fold, kf.K)
	foldSize := n / kf.K
	remainder := n % kf.K

	current := 0
	for i := 0; i < kf.K; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}

		testIndices := make([]int, testSize)
		copy(testIndices, indices[current:current+testSize])

		trainIndices := make([]int, 0, n-testSize)
		trainIndices = append(trainIndices, indices[:current]...)
		trainIndices = append(trainIndices, indices[current+testSize:]...)

		folds[i] = Fold{
			TrainIndices: trainIndices,
			TestIndices:  testIndices,
		}

		current += testSize
	}

	return folds, nil
}
