// Package tabfit provides a reproducible model-selection workflow for
// tabular regression in Go: deterministic feature preprocessing, k-fold
// cross-validation and exhaustive hyperparameter grid search over pluggable
// regression models.
//
// # Features
//
// - Leak-free preprocessing: per-column imputation, scaling and one-hot
// encoding fitted once on training data and immutable afterwards
// - Deterministic selection: fixed fold assignments, stable grid
// enumeration and fully reproducible rankings for a given seed
// - Parallel evaluation: worker-pool scheduling across grid combinations
// with context cancellation and a bounded fit-time ceiling
// - Pluggable models: any estimator exposing Fit and Predict participates;
// linear, ridge and random-forest regressors ship in-tree
//
// # Quick Start
//
//	pipe := preprocessing.FromSchema(schema)
//	trainX, err := pipe.FitTransform(trainRows)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	grid := modelselection.Grid{
//	    "n_estimators": {50, 100, 150},
//	    "max_features": {8, 10, 12},
//	}
//	result, err := modelselection.Search(ctx, factory, grid, trainX, trainY,
//	    modelselection.SearchConfig{K: 10, Seed: 42, Workers: 4})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	testX, _ := pipe.Transform(testRows) // same fitted pipeline, never refit
//	testErr, final, err := modelselection.EvaluateFinal(
//	    result.Best.Params, factory, trainX, trainY, testX, testY)
//
// # Packages
//
// The library is organized into several packages:
//
//   - dataset: row/schema types, seeded train/test split
//   - preprocessing: the feature pipeline (impute, scale, one-hot encode)
//   - modelselection: k-fold splitting, cross-validation, grid search,
//     final evaluation and the diagnostic report
//   - linear: ordinary least squares and ridge regressors
//   - ensemble: random-forest regressor
//   - metrics: regression error metrics (MSE, RMSE, MAE, R²)
//   - core/model: estimator interfaces, fitted-state management, gob
//     persistence
//   - core/parallel: chunked parallel loops and the cancellable worker pool
package tabfit
