// Package evaluation scores forecasts and aggregates them across every
// (center, item) series: accuracy metrics, the ranking sweep, model
// comparison and the error-cause heuristic.
package evaluation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
)

// zeroVariance is the relative total sum of squares below which the actual
// values count as constant.
const zeroVariance = 1e-12

// Metrics are the accuracy scores of one forecast.
//
// R2 is 1 - SS_res/SS_tot. When the actual values have zero variance R2 is
// reported as 0 and R2Defined is false.
type Metrics struct {
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
	R2        float64 `json:"r2"`
	R2Defined bool    `json:"r2_defined"`
}

// Compute scores predicted against actual.
func Compute(actual, predicted []float64) (Metrics, error) {
	if len(actual) == 0 {
		return Metrics{}, apperrors.NewAppValidationError("no values to score")
	}
	if len(actual) != len(predicted) {
		return Metrics{}, apperrors.NewAppValidationError(
			fmt.Sprintf("length mismatch: %d actual, %d predicted", len(actual), len(predicted)))
	}

	var absSum, sqSum float64
	for i := range actual {
		d := actual[i] - predicted[i]
		absSum += math.Abs(d)
		sqSum += d * d
	}
	n := float64(len(actual))

	m := Metrics{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
	}

	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, v := range actual {
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot > zeroVariance*n*math.Max(1, mean*mean) {
		m.R2 = 1 - sqSum/ssTot
		m.R2Defined = true
	}
	return m, nil
}
