package modelselection

import (
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabfit/core/model"
	"github.com/YuminosukeSato/tabfit/metrics"
	"github.com/YuminosukeSato/tabfit/pkg/errors"
	tflog "github.com/YuminosukeSato/tabfit/pkg/log"
)

// EvaluateFinal fits one model instance with the winning hyperparameters on
// the full training data and scores it by RMSE on the untouched test split.
// It is a terminal, one-shot operation: no retries, no cross-validation.
//
// The test features must come from the same already-fitted feature pipeline
// that produced the training features — refitting the pipeline on test rows
// would leak test statistics into preprocessing.
func EvaluateFinal(bestParams Params, factory ParamFactory, trainX, trainY, testX, testY mat.Matrix) (float64, model.Regressor, error) {
	nTrain, trainCols := trainX.Dims()
	nTrainY, _ := trainY.Dims()
	if nTrainY != nTrain {
		return 0, nil, errors.NewDimensionError("EvaluateFinal", nTrain, nTrainY, 0)
	}
	nTest, testCols := testX.Dims()
	nTestY, _ := testY.Dims()
	if nTestY != nTest {
		return 0, nil, errors.NewDimensionError("EvaluateFinal", nTest, nTestY, 0)
	}
	if testCols != trainCols {
		return 0, nil, errors.NewDimensionError("EvaluateFinal", trainCols, testCols, 1)
	}

	estimator := factory(bestParams)
	err := errors.SafeExecute("final fit", func() error {
		return estimator.Fit(trainX, trainY)
	})
	if err != nil {
		return 0, nil, errors.NewFitError(modelName(estimator), bestParams.String(), err)
	}

	predictions, err := predictSafely(estimator, testX)
	if err != nil {
		return 0, nil, err
	}

	testError, err := metrics.RMSEMatrix(testY, predictions)
	if err != nil {
		return 0, nil, err
	}

	slog.Default().Info("final evaluation",
		tflog.ComponentKey, "modelselection",
		tflog.PhaseKey, "final_evaluation",
		tflog.ParamsKey, bestParams.String(),
		tflog.SamplesKey, nTrain,
		tflog.TestErrorKey, testError,
	)
	return testError, estimator, nil
}

// Report is the structured diagnostic record produced after grid search and
// final evaluation.
type Report struct {
	RankedCombinations  []*ScoreRecord `json:"ranked_combinations"`
	BestHyperparameters Params         `json:"best_hyperparameters"`
	FinalTestError      float64        `json:"final_test_error"`
}

// NewReport assembles the diagnostic report from a search result and the
// final held-out test error.
func NewReport(result *SearchResult, finalTestError float64) *Report {
	return &Report{
		RankedCombinations:  result.Ranked,
		BestHyperparameters: result.Best.Params,
		FinalTestError:      finalTestError,
	}
}
