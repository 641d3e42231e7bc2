// Package log defines standard attribute keys for model-selection operations.
//
// Using these keys consistently keeps cross-validation and grid-search runs
// filterable in log output: every fold evaluation, combination score and
// final-evaluation record carries the same hierarchical key names.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "LinearRegression", "Ridge", "RandomForestRegressor"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "preprocessing", "modelselection", "ensemble"
	ComponentKey = "ml.component"

	// PhaseKey indicates the workflow phase.
	// Examples: "preprocessing", "search", "final_evaluation"
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	// SamplesKey indicates the number of rows being processed.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the feature-vector width.
	FeaturesKey = "data.features"

	// ColumnsKey indicates the number of declared dataset columns.
	ColumnsKey = "data.columns"
)

// Cross-validation and grid-search context.
const (
	// FoldKey is the zero-based index of the fold being evaluated.
	FoldKey = "cv.fold"

	// KKey is the number of folds in the current run.
	KKey = "cv.k"

	// SeedKey is the seed that fixed the fold assignment.
	SeedKey = "cv.seed"

	// CombinationKey is the enumeration index of a grid combination.
	CombinationKey = "search.combination"

	// ParamsKey is the canonical string form of a hyperparameter set.
	ParamsKey = "search.params"

	// WorkersKey is the configured worker count for a search.
	WorkersKey = "search.workers"
)

// Scores and timing.
const (
	// MeanErrorKey is the mean of the per-fold errors.
	MeanErrorKey = "score.mean_error"

	// StdErrorKey is the standard deviation of the per-fold errors.
	StdErrorKey = "score.std_error"

	// FoldErrorKey is a single fold's held-out error.
	FoldErrorKey = "score.fold_error"

	// TestErrorKey is the final held-out test error.
	TestErrorKey = "score.test_error"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)
