package modelselection

import (
	"context"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabfit/core/model"
	"github.com/YuminosukeSato/tabfit/core/parallel"
	"github.com/YuminosukeSato/tabfit/metrics"
	"github.com/YuminosukeSato/tabfit/pkg/errors"
	tflog "github.com/YuminosukeSato/tabfit/pkg/log"
)

// Factory creates a fresh, unfitted estimator. The harness calls it once
// per fold so no fitted state ever crosses fold boundaries.
type Factory func() model.Regressor

// ScoreRecord is the outcome of cross-validating one model configuration.
// It is created once per configuration and never mutated after aggregation.
type ScoreRecord struct {
	Model       string    `json:"model,omitempty"`
	Params      Params    `json:"params,omitempty"`
	Combination int       `json:"combination"`
	FoldErrors  []float64 `json:"fold_errors,omitempty"`
	MeanError   float64   `json:"mean_error"`
	StdError    float64   `json:"std_error"`

	// Failed marks a configuration whose model could not be fitted. Failed
	// records appear in the ranked table for traceability but are excluded
	// from ranking.
	Failed        bool   `json:"failed,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// CVConfig configures one cross-validation run.
type CVConfig struct {
	// K is the number of folds.
	K int

	// Seed fixes the fold assignment.
	Seed int64

	// Workers bounds fold-level parallelism. Values below 1 use all CPUs.
	Workers int

	// FitTimeout bounds a single model fit. A fit exceeding it is a fatal
	// configuration problem, not a transient fault. Zero disables the
	// ceiling.
	FitTimeout time.Duration

	// ModelName labels the resulting ScoreRecord.
	ModelName string
}

// CrossValidate evaluates the factory's model family over k folds: for each
// fold a fresh model instance trains on the other k−1 folds and is scored
// by RMSE on the held-out fold. Each row is held out exactly once. The
// returned record carries the k per-fold errors with their mean and
// standard deviation, reduced only after every fold completed.
func CrossValidate(ctx context.Context, factory Factory, X, y mat.Matrix, cfg CVConfig) (*ScoreRecord, error) {
	n, _ := X.Dims()
	ny, _ := y.Dims()
	if ny != n {
		return nil, errors.NewDimensionError("CrossValidate", n, ny, 0)
	}

	folds, err := NewKFold(cfg.K, cfg.Seed).Split(n)
	if err != nil {
		return nil, err
	}

	record, err := crossValidateFolds(ctx, factory, X, y, folds, cfg, parallel.NewPool(cfg.Workers))
	if err != nil {
		return nil, err
	}
	return record, nil
}

// crossValidateFolds runs the fold loop against a precomputed, shared fold
// assignment. The grid search uses it directly so every combination sees
// the identical partition.
func crossValidateFolds(ctx context.Context, factory Factory, X, y mat.Matrix, folds []Fold, cfg CVConfig, pool *parallel.Pool) (*ScoreRecord, error) {
	logger := slog.Default().With(
		tflog.ComponentKey, "modelselection",
		tflog.ModelNameKey, cfg.ModelName,
		tflog.KKey, len(folds),
		tflog.SeedKey, cfg.Seed,
	)

	foldErrors := make([]float64, len(folds))
	err := pool.Run(ctx, len(folds), func(i int) error {
		foldErr, err := evaluateFold(X, y, folds[i], factory, cfg.FitTimeout)
		if err != nil {
			return err
		}
		foldErrors[i] = foldErr
		logger.Debug("fold evaluated",
			tflog.OperationKey, "cross_validate",
			tflog.FoldKey, i,
			tflog.FoldErrorKey, foldErr,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	mean, std := meanStd(foldErrors)
	return &ScoreRecord{
		Model:      cfg.ModelName,
		FoldErrors: foldErrors,
		MeanError:  mean,
		StdError:   std,
	}, nil
}

// evaluateFold trains a fresh model on the fold's training rows and scores
// it on the held-out rows. The model never sees its held-out fold.
func evaluateFold(X, y mat.Matrix, fold Fold, factory Factory, fitTimeout time.Duration) (float64, error) {
	trainX, trainY := subset(X, y, fold.TrainIndices)
	testX, testY := subset(X, y, fold.TestIndices)

	estimator := factory()
	if err := fitBounded(estimator, trainX, trainY, fitTimeout); err != nil {
		return 0, err
	}

	predictions, err := predictSafely(estimator, testX)
	if err != nil {
		return 0, err
	}

	return metrics.RMSEMatrix(testY, predictions)
}

// fitBounded runs a model fit under the configured ceiling. Panics from
// black-box estimators surface as errors; a fit that outlives the ceiling
// is abandoned and reported as a fatal configuration error.
func fitBounded(estimator model.Regressor, X, y mat.Matrix, timeout time.Duration) error {
	fit := func() error {
		return errors.SafeExecute("model fit", func() error {
			return estimator.Fit(X, y)
		})
	}

	if timeout <= 0 {
		if err := fit(); err != nil {
			return errors.NewFitError(modelName(estimator), "", err)
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- fit()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return errors.NewFitError(modelName(estimator), "", err)
		}
		return nil
	case <-timer.C:
		return errors.NewConfigError("fit_timeout", "model fit exceeded the configured ceiling", timeout)
	}
}

func predictSafely(estimator model.Regressor, X mat.Matrix) (mat.Matrix, error) {
	var predictions mat.Matrix
	err := errors.SafeExecute("model predict", func() error {
		var predictErr error
		predictions, predictErr = estimator.Predict(X)
		return predictErr
	})
	if err != nil {
		return nil, errors.NewFitError(modelName(estimator), "", err)
	}
	return predictions, nil
}

// subset copies the addressed rows into fresh matrices so concurrent folds
// never share mutable state.
func subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, xCols := X.Dims()

	xSubset := mat.NewDense(len(indices), xCols, nil)
	ySubset := mat.NewDense(len(indices), 1, nil)

	for i, idx := range indices {
		for j := 0; j < xCols; j++ {
			xSubset.Set(i, j, X.At(idx, j))
		}
		ySubset.Set(i, 0, y.At(idx, 0))
	}

	return xSubset, ySubset
}

// meanStd aggregates fold errors. The reduction happens only after every
// fold finished; std is the sample standard deviation.
func meanStd(values []float64) (mean, std float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	if len(values) <= 1 {
		return mean, 0
	}

	var sumSq float64
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return mean, math.Sqrt(sumSq / float64(len(values)-1))
}

func modelName(estimator model.Regressor) string {
	if s, ok := estimator.(interface{ String() string }); ok {
		return s.String()
	}
	return "estimator"
}
