package modelselection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabfit/core/model"
	"github.com/YuminosukeSato/tabfit/core/parallel"
	"github.com/YuminosukeSato/tabfit/pkg/errors"
	tflog "github.com/YuminosukeSato/tabfit/pkg/log"
)

// Params is one hyperparameter combination, axis name to chosen value.
type Params map[string]interface{}

// String renders the combination canonically: axis names sorted, "name=value"
// pairs joined by ", ". Two equal combinations always render identically.
func (p Params) String() string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%v", name, p[name])
	}
	return strings.Join(parts, ", ")
}

// Grid maps each hyperparameter axis to its candidate values.
type Grid map[string][]interface{}

// Combinations enumerates the Cartesian product of the grid's axes in a
// stable order: axes sorted lexicographically by name, the last axis
// cycling fastest, values in their declared list order.
func (g Grid) Combinations() ([]Params, error) {
	if len(g) == 0 {
		return nil, errors.NewConfigError("grid", "grid has no axes", errors.ErrEmptyGrid)
	}

	axes := make([]string, 0, len(g))
	for name := range g {
		axes = append(axes, name)
	}
	sort.Strings(axes)

	total := 1
	for _, name := range axes {
		if len(g[name]) == 0 {
			return nil, errors.NewConfigError("grid", fmt.Sprintf("axis %q has no candidate values", name), errors.ErrEmptyGrid)
		}
		total *= len(g[name])
	}

	combos := make([]Params, 0, total)
	counters := make([]int, len(axes))
	for {
		combo := make(Params, len(axes))
		for i, name := range axes {
			combo[name] = g[name][counters[i]]
		}
		combos = append(combos, combo)

		// Odometer increment, last axis fastest.
		i := len(axes) - 1
		for ; i >= 0; i-- {
			counters[i]++
			if counters[i] < len(g[axes[i]]) {
				break
			}
			counters[i] = 0
		}
		if i < 0 {
			return combos, nil
		}
	}
}

// ParamFactory builds a fresh, unfitted estimator for one hyperparameter
// combination.
type ParamFactory func(params Params) model.Regressor

// SearchConfig configures a grid search.
type SearchConfig struct {
	// K is the number of cross-validation folds per combination.
	K int

	// Seed fixes the fold assignment. The assignment is computed once and
	// shared read-only by every combination; scoring all combinations on
	// the identical partition is what makes their mean errors comparable.
	Seed int64

	// Workers bounds combination-level parallelism. Values below 1 use all
	// CPUs. Folds inside a combination run sequentially.
	Workers int

	// FitTimeout bounds a single model fit; exceeding it aborts the search.
	// Zero disables the ceiling.
	FitTimeout time.Duration

	// ModelName labels the resulting ScoreRecords.
	ModelName string
}

// SearchResult is the outcome of a grid search: the winning record and the
// full ranked table for traceability.
type SearchResult struct {
	Best   *ScoreRecord
	Ranked []*ScoreRecord
}

// Search cross-validates every combination in the grid and ranks them by
// ascending mean error, ties broken by ascending standard deviation, then
// by enumeration order. Re-running with the same grid, data and seed yields
// an identical ranked table.
//
// A combination whose model fails to fit is marked failed, kept in the
// ranked table after all successful records, and excluded from ranking. A
// cancelled context stops the dispatch of further combinations and Search
// returns the context error; no partial table is returned.
func Search(ctx context.Context, factory ParamFactory, grid Grid, X, y mat.Matrix, cfg SearchConfig) (*SearchResult, error) {
	combos, err := grid.Combinations()
	if err != nil {
		return nil, err
	}

	n, _ := X.Dims()
	ny, _ := y.Dims()
	if ny != n {
		return nil, errors.NewDimensionError("Search", n, ny, 0)
	}

	// One fold assignment for the whole search, shared read-only.
	folds, err := NewKFold(cfg.K, cfg.Seed).Split(n)
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With(
		tflog.ComponentKey, "modelselection",
		tflog.PhaseKey, "search",
		tflog.ModelNameKey, cfg.ModelName,
		tflog.KKey, cfg.K,
		tflog.SeedKey, cfg.Seed,
	)
	logger.Info("grid search started",
		tflog.SamplesKey, n,
		tflog.WorkersKey, cfg.Workers,
		"combinations", len(combos),
	)
	started := time.Now()

	cvCfg := CVConfig{
		K:          cfg.K,
		Seed:       cfg.Seed,
		FitTimeout: cfg.FitTimeout,
		ModelName:  cfg.ModelName,
	}

	records := make([]*ScoreRecord, len(combos))
	foldPool := parallel.NewPool(1)
	pool := parallel.NewPool(cfg.Workers)

	err = pool.Run(ctx, len(combos), func(i int) error {
		params := combos[i]
		record, cvErr := crossValidateFolds(ctx, func() model.Regressor {
			return factory(params)
		}, X, y, folds, cvCfg, foldPool)

		if cvErr != nil {
			var fitErr *errors.FitError
			if errors.As(cvErr, &fitErr) {
				// Isolated: this combination is reported as failed, the
				// search continues.
				records[i] = &ScoreRecord{
					Model:         cfg.ModelName,
					Params:        params,
					Combination:   i,
					Failed:        true,
					FailureReason: cvErr.Error(),
				}
				logger.Warn("combination failed to fit",
					tflog.CombinationKey, i,
					tflog.ParamsKey, params.String(),
					tflog.ErrAttrKey, cvErr,
				)
				return nil
			}
			return cvErr
		}

		record.Params = params
		record.Combination = i
		records[i] = record

		logger.Debug("combination scored",
			tflog.CombinationKey, i,
			tflog.ParamsKey, params.String(),
			tflog.MeanErrorKey, record.MeanError,
			tflog.StdErrorKey, record.StdError,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result, err := rank(records)
	if err != nil {
		return nil, err
	}

	logger.Info("grid search finished",
		tflog.ParamsKey, result.Best.Params.String(),
		tflog.MeanErrorKey, result.Best.MeanError,
		tflog.DurationMsKey, time.Since(started).Milliseconds(),
	)
	return result, nil
}

// rank orders successful records by (mean error, std, enumeration order)
// and appends failed records, in enumeration order, after them.
func rank(records []*ScoreRecord) (*SearchResult, error) {
	succeeded := make([]*ScoreRecord, 0, len(records))
	failed := make([]*ScoreRecord, 0)
	for _, record := range records {
		if record.Failed {
			failed = append(failed, record)
		} else {
			succeeded = append(succeeded, record)
		}
	}

	if len(succeeded) == 0 {
		return nil, errors.Newf("grid search: all %d combinations failed to fit", len(records))
	}

	sort.SliceStable(succeeded, func(i, j int) bool {
		a, b := succeeded[i], succeeded[j]
		if a.MeanError != b.MeanError {
			return a.MeanError < b.MeanError
		}
		if a.StdError != b.StdError {
			return a.StdError < b.StdError
		}
		return a.Combination < b.Combination
	})

	ranked := append(succeeded, failed...)
	return &SearchResult{Best: ranked[0], Ranked: ranked}, nil
}
