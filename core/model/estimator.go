package model

import "gonum.org/v1/gonum/mat"

// Fitter is the interface for trainable estimators.
type Fitter interface {
	// Fit trains the estimator on the given features and labels.
	Fit(X, y mat.Matrix) error
}

// Predictor is the interface for estimators that can predict.
type Predictor interface {
	// Predict returns one prediction per input row as an n×1 matrix.
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor is the capability set the selection harness is polymorphic
// over. It never inspects anything beyond these two methods.
type Regressor interface {
	Fitter
	Predictor
}

// Scorer is the interface for estimators that can compute a goodness-of-fit
// score (coefficient of determination R²).
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// ParameterGetter is the interface for estimators that expose their
// hyperparameters.
type ParameterGetter interface {
	// GetParams returns the estimator's hyperparameters.
	GetParams() map[string]interface{}
}
