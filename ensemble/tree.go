package ensemble

import (
	"math"
	"math/rand/v2"
)

// regressionTree is a CART-style regression tree. Splits are chosen by
// variance reduction over a per-node random feature subset, which is what
// makes the surrounding forest's max_features hyperparameter meaningful.
type regressionTree struct {
	maxDepth        int // 0 => no limit
	minSamplesSplit int
	maxFeatures     int // 0 => all features

	root *treeNode
}

type treeNode struct {
	isLeaf    bool
	feature   int
	threshold float64 // x <= threshold => left

	left  *treeNode
	right *treeNode

	value float64 // leaf mean
	n     int
}

// fit grows the tree on the sample rows addressed by indices.
// rng drives feature subsampling and must be owned by this tree alone.
func (t *regressionTree) fit(X [][]float64, y []float64, indices []int, rng *rand.Rand) {
	t.root = t.build(X, y, indices, 0, rng)
}

func (t *regressionTree) build(X [][]float64, y []float64, indices []int, depth int, rng *rand.Rand) *treeNode {
	n := len(indices)
	mean := meanAt(y, indices)

	if n < t.minSamplesSplit || (t.maxDepth > 0 && depth >= t.maxDepth) || isConstant(y, indices) {
		return &treeNode{isLeaf: true, value: mean, n: n}
	}

	feature, threshold, ok := t.bestSplit(X, y, indices, rng)
	if !ok {
		return &treeNode{isLeaf: true, value: mean, n: n}
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, idx := range indices {
		if X[idx][feature] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{isLeaf: true, value: mean, n: n}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      t.build(X, y, left, depth+1, rng),
		right:     t.build(X, y, right, depth+1, rng),
		n:         n,
	}
}

// bestSplit scans candidate features for the threshold minimizing the
// weighted sum of child squared errors. Thresholds are midpoints between
// consecutive distinct sorted values.
func (t *regressionTree) bestSplit(X [][]float64, y []float64, indices []int, rng *rand.Rand) (feature int, threshold float64, ok bool) {
	p := len(X[indices[0]])
	features := t.sampleFeatures(p, rng)

	n := len(indices)
	bestSSE := math.Inf(1)

	sorted := make([]int, n)
	for _, f := range features {
		copy(sorted, indices)
		sortByFeature(X, sorted, f)

		// Incremental left/right sums over the sorted order.
		var leftSum, leftSq float64
		rightSum, rightSq := sumAndSquares(y, sorted)

		for i := 0; i < n-1; i++ {
			v := y[sorted[i]]
			leftSum += v
			leftSq += v * v
			rightSum -= v
			rightSq -= v * v

			cur := X[sorted[i]][f]
			next := X[sorted[i+1]][f]
			if cur == next {
				continue
			}

			nl := float64(i + 1)
			nr := float64(n - i - 1)
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if sse < bestSSE {
				bestSSE = sse
				feature = f
				threshold = (cur + next) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func (t *regressionTree) sampleFeatures(p int, rng *rand.Rand) []int {
	k := t.maxFeatures
	if k <= 0 || k >= p {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}

	perm := rng.Perm(p)
	return perm[:k]
}

func (t *regressionTree) predict(row []float64) float64 {
	node := t.root
	for !node.isLeaf {
		if row[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func meanAt(y []float64, indices []int) float64 {
	var sum float64
	for _, idx := range indices {
		sum += y[idx]
	}
	return sum / float64(len(indices))
}

func isConstant(y []float64, indices []int) bool {
	first := y[indices[0]]
	for _, idx := range indices[1:] {
		if y[idx] != first {
			return false
		}
	}
	return true
}

func sumAndSquares(y []float64, indices []int) (sum, squares float64) {
	for _, idx := range indices {
		v := y[idx]
		sum += v
		squares += v * v
	}
	return sum, squares
}

// sortByFeature sorts indices ascending by X[idx][f].
func sortByFeature(X [][]float64, indices []int, f int) {
	quicksortByKey(X, indices, f, 0, len(indices)-1)
}

func quicksortByKey(X [][]float64, indices []int, f, lo, hi int) {
	for lo < hi {
		if hi-lo < 12 {
			for i := lo + 1; i <= hi; i++ {
				for j := i; j > lo && X[indices[j]][f] < X[indices[j-1]][f]; j-- {
					indices[j], indices[j-1] = indices[j-1], indices[j]
				}
			}
			return
		}

		mid := lo + (hi-lo)/2
		pivot := X[indices[mid]][f]
		i, j := lo, hi
		for i <= j {
			for X[indices[i]][f] < pivot {
				i++
			}
			for X[indices[j]][f] > pivot {
				j--
			}
			if i <= j {
				indices[i], indices[j] = indices[j], indices[i]
				i++
				j--
			}
		}
		// Recurse into the smaller side, loop on the larger.
		if j-lo < hi-i {
			quicksortByKey(X, indices, f, lo, j)
			lo = i
		} else {
			quicksortByKey(X, indices, f, i, hi)
			hi = j
		}
	}
}
