// Package linear implements linear regression model families solved by the
// normal equations. Both estimators satisfy the harness capability
// interface (Fit, Predict) and plug into cross-validation unchanged.
package linear

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabfit/core/model"
	"github.com/YuminosukeSato/tabfit/core/parallel"
	"github.com/YuminosukeSato/tabfit/pkg/errors"
)

// Threshold below which the design matrix is assembled sequentially.
const parallelThreshold = 1000

// LinearRegression is an ordinary least squares regressor,
// w = (XᵀX)⁻¹ Xᵀy with an intercept term.
type LinearRegression struct {
	state *model.StateManager

	Weights   *mat.VecDense // Coefficients, one per feature
	Intercept float64
	NFeatures int

	fitIntercept bool
}

// NewLinearRegression creates an unfitted ordinary least squares regressor.
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range opts {
		opt(&lr.fitIntercept)
	}
	return lr
}

// Fit solves the normal equations on the training data.
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	weights, intercept, nFeatures, err := solveNormalEquations(X, y, 0, lr.fitIntercept, "LinearRegression.Fit")
	if err != nil {
		return err
	}

	lr.Weights = weights
	lr.Intercept = intercept
	lr.NFeatures = nFeatures

	r, _ := X.Dims()
	lr.state.SetDimensions(nFeatures, r)
	lr.state.SetFitted()
	return nil
}

// Predict computes y = X·w + intercept for each input row.
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.state.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}
	return predictLinear(X, lr.Weights, lr.Intercept, lr.NFeatures, "LinearRegression.Predict")
}

// Score returns the coefficient of determination R² on the given data.
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	if !lr.state.IsFitted() {
		return 0, errors.NewNotFittedError("LinearRegression", "Score")
	}
	return scoreLinear(lr, X, y)
}

// GetParams returns the estimator's hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}

// String returns a short description of the estimator.
func (lr *LinearRegression) String() string {
	if !lr.state.IsFitted() {
		return "LinearRegression()"
	}
	return fmt.Sprintf("LinearRegression(n_features=%d)", lr.NFeatures)
}

// Ridge is an L2-regularized linear regressor,
// w = (XᵀX + αI)⁻¹ Xᵀy. The intercept term is not penalized.
type Ridge struct {
	state *model.StateManager

	// Alpha is the L2 regularization strength. Zero reduces to OLS.
	Alpha float64

	Weights   *mat.VecDense
	Intercept float64
	NFeatures int

	fitIntercept bool
}

// NewRidge creates an unfitted ridge regressor with the given
// regularization strength.
func NewRidge(alpha float64, opts ...Option) *Ridge {
	r := &Ridge{
		state:        model.NewStateManager(),
		Alpha:        alpha,
		fitIntercept: true,
	}
	for _, opt := range opts {
		opt(&r.fitIntercept)
	}
	return r
}

// Fit solves the regularized normal equations on the training data.
func (rd *Ridge) Fit(X, y mat.Matrix) error {
	if rd.Alpha < 0 {
		return errors.NewConfigError("alpha", "must be non-negative", rd.Alpha)
	}

	weights, intercept, nFeatures, err := solveNormalEquations(X, y, rd.Alpha, rd.fitIntercept, "Ridge.Fit")
	if err != nil {
		return err
	}

	rd.Weights = weights
	rd.Intercept = intercept
	rd.NFeatures = nFeatures

	r, _ := X.Dims()
	rd.state.SetDimensions(nFeatures, r)
	rd.state.SetFitted()
	return nil
}

// Predict computes y = X·w + intercept for each input row.
func (rd *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rd.state.IsFitted() {
		return nil, errors.NewNotFittedError("Ridge", "Predict")
	}
	return predictLinear(X, rd.Weights, rd.Intercept, rd.NFeatures, "Ridge.Predict")
}

// Score returns the coefficient of determination R² on the given data.
func (rd *Ridge) Score(X, y mat.Matrix) (float64, error) {
	if !rd.state.IsFitted() {
		return 0, errors.NewNotFittedError("Ridge", "Score")
	}
	return scoreLinear(rd, X, y)
}

// GetParams returns the estimator's hyperparameters.
func (rd *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         rd.Alpha,
		"fit_intercept": rd.fitIntercept,
	}
}

// String returns a short description of the estimator.
func (rd *Ridge) String() string {
	if !rd.state.IsFitted() {
		return fmt.Sprintf("Ridge(alpha=%g)", rd.Alpha)
	}
	return fmt.Sprintf("Ridge(alpha=%g, n_features=%d)", rd.Alpha, rd.NFeatures)
}

// solveNormalEquations solves (XᵀX + αI)w = Xᵀy with an optional leading
// intercept column. The intercept diagonal entry is never regularized.
func solveNormalEquations(X, y mat.Matrix, alpha float64, fitIntercept bool, op string) (*mat.VecDense, float64, int, error) {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return nil, 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	if ry != r {
		return nil, 0, 0, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return nil, 0, 0, errors.NewValueError(op, "y must be a column vector")
	}

	offset := 0
	if fitIntercept {
		offset = 1
	}

	design := mat.NewDense(r, c+offset, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			if fitIntercept {
				design.Set(i, 0, 1.0)
			}
			for j := 0; j < c; j++ {
				design.Set(i, j+offset, X.At(i, j))
			}
		}
	})

	var designT mat.Dense
	designT.CloneFrom(design.T())

	var gram mat.Dense
	gram.Mul(&designT, design)

	if alpha > 0 {
		for j := offset; j < c+offset; j++ {
			gram.Set(j, j, gram.At(j, j)+alpha)
		}
	}

	var gramInv mat.Dense
	if err := gramInv.Inverse(&gram); err != nil {
		return nil, 0, 0, errors.Wrap(errors.ErrSingularMatrix, op)
	}

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
	}

	var xty mat.VecDense
	xty.MulVec(&designT, yVec)

	solution := mat.NewVecDense(c+offset, nil)
	solution.MulVec(&gramInv, &xty)

	var intercept float64
	weights := mat.NewVecDense(c, nil)
	if fitIntercept {
		intercept = solution.AtVec(0)
	}
	for j := 0; j < c; j++ {
		weights.SetVec(j, solution.AtVec(j+offset))
	}

	return weights, intercept, c, nil
}

func predictLinear(X mat.Matrix, weights *mat.VecDense, intercept float64, nFeatures int, op string) (mat.Matrix, error) {
	r, c := X.Dims()
	if c != nFeatures {
		return nil, errors.NewDimensionError(op, nFeatures, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := intercept
			for j := 0; j < c; j++ {
				pred += X.At(i, j) * weights.AtVec(j)
			}
			predictions.Set(i, 0, pred)
		}
	})

	return predictions, nil
}

func scoreLinear(m model.Predictor, X, y mat.Matrix) (float64, error) {
	yPred, err := m.Predict(X)
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
