// Package dataset defines the in-memory tabular representation consumed by
// the feature pipeline and the model-selection harness: ordered rows of
// named columns, a caller-declared schema, and the seeded train/test split.
package dataset

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabfit/pkg/errors"
)

// Row maps a column name to its raw value. Numeric columns hold float64
// (or any integer type, converted on read); categorical columns hold
// string. A missing numeric value is a nil entry or NaN.
type Row map[string]interface{}

// Schema declares how the caller's columns are to be handled. It is never
// inferred from the data.
type Schema struct {
	// NumericColumns is the ordered list of numeric feature columns.
	NumericColumns []string

	// CategoricalColumns is the ordered list of categorical feature columns.
	CategoricalColumns []string

	// Target is the continuous target column.
	Target string
}

// Validate checks that the roles partition the feature columns: no column
// in two roles, no feature column equal to the target, and a non-empty
// declaration.
func (s Schema) Validate() error {
	if s.Target == "" {
		return errors.NewConfigError("target", "target column must be declared", s.Target)
	}
	if len(s.NumericColumns)+len(s.CategoricalColumns) == 0 {
		return errors.NewConfigError("columns", "at least one feature column must be declared", 0)
	}

	seen := make(map[string]bool, len(s.NumericColumns)+len(s.CategoricalColumns))
	for _, name := range s.NumericColumns {
		if name == s.Target {
			return errors.NewConfigError("columns", "target column declared as a feature", name)
		}
		if seen[name] {
			return errors.NewConfigError("columns", "column declared in two roles", name)
		}
		seen[name] = true
	}
	for _, name := range s.CategoricalColumns {
		if name == s.Target {
			return errors.NewConfigError("columns", "target column declared as a feature", name)
		}
		if seen[name] {
			return errors.NewConfigError("columns", "column declared in two roles", name)
		}
		seen[name] = true
	}
	return nil
}

// FeatureColumns returns the declared feature columns, numeric first.
func (s Schema) FeatureColumns() []string {
	cols := make([]string, 0, len(s.NumericColumns)+len(s.CategoricalColumns))
	cols = append(cols, s.NumericColumns...)
	cols = append(cols, s.CategoricalColumns...)
	return cols
}

// TrainTestSplit partitions rows into two disjoint sets by uniform random
// assignment. The test set receives round(fraction·n) rows and the training
// set the remainder. The split is deterministic for a given seed.
func TrainTestSplit(rows []Row, fraction float64, seed int64) (train, test []Row, err error) {
	if len(rows) == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "TrainTestSplit")
	}
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, errors.NewConfigError("fraction", "must be inside (0, 1)", fraction)
	}

	n := len(rows)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	r.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	testSize := int(math.Round(fraction * float64(n)))

	test = make([]Row, 0, testSize)
	train = make([]Row, 0, n-testSize)
	for i, idx := range indices {
		if i < testSize {
			test = append(test, rows[idx])
		} else {
			train = append(train, rows[idx])
		}
	}
	return train, test, nil
}

// TargetVector extracts the target column as an n×1 vector. A missing or
// non-numeric target value is a schema violation.
func TargetVector(rows []Row, target string) (*mat.VecDense, error) {
	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "TargetVector")
	}

	y := mat.NewVecDense(len(rows), nil)
	for i, row := range rows {
		raw, ok := row[target]
		if !ok || raw == nil {
			return nil, errors.NewSchemaError("TargetVector", target, "target value missing")
		}
		v, ok := NumericValue(raw)
		if !ok || math.IsNaN(v) {
			return nil, errors.NewSchemaError("TargetVector", target, "target value is not numeric")
		}
		y.SetVec(i, v)
	}
	return y, nil
}

// NumericValue converts a raw cell to float64. It reports false for
// non-numeric values; NaN converts successfully and is the caller's
// missing-value marker.
func NumericValue(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
