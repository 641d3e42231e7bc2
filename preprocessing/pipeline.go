// Package preprocessing turns raw mixed-type rows into fixed-width feature
// vectors. A Pipeline composes per-column transforms — median imputation and
// standardization for numeric columns, one-hot encoding for categorical
// columns — into a single fit/transform unit whose statistics are computed
// exactly once, from training rows only.
package preprocessing

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabfit/core/model"
	"github.com/YuminosukeSato/tabfit/dataset"
	"github.com/YuminosukeSato/tabfit/pkg/errors"
	tflog "github.com/YuminosukeSato/tabfit/pkg/log"
)

// ColumnRole declares how a column is transformed.
type ColumnRole int

const (
	// Numeric columns are imputed with the training median and standardized.
	Numeric ColumnRole = iota
	// Categorical columns are one-hot encoded against the training vocabulary.
	Categorical
)

// ColumnSpec binds one column name to its role.
type ColumnSpec struct {
	Name string
	Role ColumnRole
}

// NumericStats holds the fitted statistics for one numeric column.
// Immutable after fit.
type NumericStats struct {
	Median float64
	Mean   float64
	Std    float64
}

// Pipeline composes the per-column transforms into one fit/transform unit.
//
// The output feature vector is the concatenation of the transformed numeric
// columns (in spec order) followed by one one-hot block per categorical
// column (in spec order, vocabulary order within the block). The width is
// fixed at fit time and never changes, regardless of novel categories or
// missing values in later input.
type Pipeline struct {
	state  *model.StateManager
	logger *slog.Logger

	specs []ColumnSpec

	stats map[string]NumericStats
	vocab map[string][]string
	width int
}

// NewPipeline creates an unfitted Pipeline for the given column specs.
func NewPipeline(specs ...ColumnSpec) *Pipeline {
	copied := make([]ColumnSpec, len(specs))
	copy(copied, specs)
	return &Pipeline{
		state:  model.NewStateManager(),
		logger: slog.Default().With(tflog.ComponentKey, "preprocessing"),
		specs:  copied,
	}
}

// FromSchema creates a Pipeline covering a schema's feature columns,
// numeric columns first.
func FromSchema(s dataset.Schema) *Pipeline {
	specs := make([]ColumnSpec, 0, len(s.NumericColumns)+len(s.CategoricalColumns))
	for _, name := range s.NumericColumns {
		specs = append(specs, ColumnSpec{Name: name, Role: Numeric})
	}
	for _, name := range s.CategoricalColumns {
		specs = append(specs, ColumnSpec{Name: name, Role: Categorical})
	}
	return NewPipeline(specs...)
}

// Fit computes the per-column statistics and vocabularies from the training
// rows. It must be called exactly once per Pipeline instance: a second Fit
// is rejected with a LeakageError because downstream consumers already hold
// vectors produced from the first fit's statistics.
func (p *Pipeline) Fit(rows []dataset.Row) error {
	if p.state.IsFitted() {
		reason := "pipeline statistics are computed once and immutable"
		if p.state.TransformCount() > 0 {
			reason = "pipeline already produced transformed output from the previous fit"
		}
		return errors.NewLeakageError("Pipeline", "Fit", reason)
	}
	if len(rows) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "Pipeline.Fit")
	}
	if len(p.specs) == 0 {
		return errors.NewConfigError("specs", "pipeline has no column specs", 0)
	}

	stats := make(map[string]NumericStats)
	vocab := make(map[string][]string)
	width := 0

	for _, spec := range p.specs {
		switch spec.Role {
		case Numeric:
			s, err := fitNumericColumn(rows, spec.Name)
			if err != nil {
				return err
			}
			stats[spec.Name] = s
			width++
		case Categorical:
			v, err := fitCategoricalColumn(rows, spec.Name)
			if err != nil {
				return err
			}
			vocab[spec.Name] = v
			width += len(v)
		default:
			return errors.NewConfigError("role", "unknown column role", spec.Role)
		}
	}

	p.stats = stats
	p.vocab = vocab
	p.width = width
	p.state.SetDimensions(width, len(rows))
	p.state.SetFitted()

	p.logger.Debug("pipeline fitted",
		tflog.OperationKey, "fit",
		tflog.SamplesKey, len(rows),
		tflog.FeaturesKey, width,
		tflog.ColumnsKey, len(p.specs),
	)
	return nil
}

// Transform maps rows to feature vectors using only the stored statistics
// and vocabularies. It never recomputes anything: transforming the same
// rows twice yields identical output.
func (p *Pipeline) Transform(rows []dataset.Row) (*mat.Dense, error) {
	if !p.state.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Transform")
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "Pipeline.Transform")
	}

	out := mat.NewDense(len(rows), p.width, nil)
	for i, row := range rows {
		if err := p.transformRow(row, out, i); err != nil {
			return nil, err
		}
	}

	p.state.RecordTransform()
	return out, nil
}

// FitTransform fits on rows and transforms the same rows. Intended for the
// training split, exactly once per Pipeline instance.
func (p *Pipeline) FitTransform(rows []dataset.Row) (*mat.Dense, error) {
	if err := p.Fit(rows); err != nil {
		return nil, err
	}
	return p.Transform(rows)
}

// Width returns the fixed feature-vector width. Zero before fit.
func (p *Pipeline) Width() int {
	return p.width
}

// IsFitted reports whether Fit has completed.
func (p *Pipeline) IsFitted() bool {
	return p.state.IsFitted()
}

// Stats returns a copy of the fitted statistics for one numeric column.
func (p *Pipeline) Stats(column string) (NumericStats, bool) {
	s, ok := p.stats[column]
	return s, ok
}

// Vocabulary returns a copy of the fitted vocabulary for one categorical
// column, in encoding order.
func (p *Pipeline) Vocabulary(column string) ([]string, bool) {
	v, ok := p.vocab[column]
	if !ok {
		return nil, false
	}
	out := make([]string, len(v))
	copy(out, v)
	return out, true
}

// String returns a short description of the pipeline.
func (p *Pipeline) String() string {
	if !p.state.IsFitted() {
		return fmt.Sprintf("Pipeline(columns=%d)", len(p.specs))
	}
	return fmt.Sprintf("Pipeline(columns=%d, width=%d)", len(p.specs), p.width)
}

func (p *Pipeline) transformRow(row dataset.Row, out *mat.Dense, i int) error {
	j := 0
	for _, spec := range p.specs {
		switch spec.Role {
		case Numeric:
			v, missing, err := numericCell(row, spec.Name, "Pipeline.Transform")
			if err != nil {
				return err
			}
			s := p.stats[spec.Name]
			if missing {
				v = s.Median
			}
			if s.Std == 0 {
				out.Set(i, j, 0)
			} else {
				out.Set(i, j, (v-s.Mean)/s.Std)
			}
			j++
		case Categorical:
			value, err := categoricalCell(row, spec.Name, "Pipeline.Transform")
			if err != nil {
				return err
			}
			vocabulary := p.vocab[spec.Name]
			// Unseen categories leave the whole block at zero.
			for idx, category := range vocabulary {
				if category == value {
					out.Set(i, j+idx, 1)
					break
				}
			}
			j += len(vocabulary)
		}
	}
	return nil
}

func fitNumericColumn(rows []dataset.Row, column string) (NumericStats, error) {
	values := make([]float64, 0, len(rows))
	missing := 0
	for _, row := range rows {
		v, isMissing, err := numericCell(row, column, "Pipeline.Fit")
		if err != nil {
			return NumericStats{}, err
		}
		if isMissing {
			missing++
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return NumericStats{}, errors.NewSchemaError("Pipeline.Fit", column, "no non-missing numeric values")
	}

	median := medianOf(values)

	// Mean and std are taken over the imputed column so that scaling and
	// imputation agree on the same training distribution.
	n := len(values) + missing
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	sum += median * float64(missing)
	mean := sum / float64(n)

	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	imputedDiff := median - mean
	sumSquares += imputedDiff * imputedDiff * float64(missing)
	std := math.Sqrt(sumSquares / float64(n))
	if std < 1e-12 {
		std = 0
	}

	return NumericStats{Median: median, Mean: mean, Std: std}, nil
}

func fitCategoricalColumn(rows []dataset.Row, column string) ([]string, error) {
	seen := make(map[string]bool)
	vocabulary := make([]string, 0)
	for _, row := range rows {
		value, err := categoricalCell(row, column, "Pipeline.Fit")
		if err != nil {
			return nil, err
		}
		if !seen[value] {
			seen[value] = true
			vocabulary = append(vocabulary, value)
		}
	}
	return vocabulary, nil
}

func numericCell(row dataset.Row, column, op string) (value float64, missing bool, err error) {
	raw, ok := row[column]
	if !ok {
		return 0, false, errors.NewSchemaError(op, column, "declared column absent from row")
	}
	if raw == nil {
		return 0, true, nil
	}
	v, ok := dataset.NumericValue(raw)
	if !ok {
		return 0, false, errors.NewSchemaError(op, column, "non-numeric value in numeric column")
	}
	if math.IsNaN(v) {
		return 0, true, nil
	}
	return v, false, nil
}

func categoricalCell(row dataset.Row, column, op string) (string, error) {
	raw, ok := row[column]
	if !ok {
		return "", errors.NewSchemaError(op, column, "declared column absent from row")
	}
	value, ok := raw.(string)
	if !ok {
		return "", errors.NewSchemaError(op, column, "non-string value in categorical column")
	}
	return value, nil
}

func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
