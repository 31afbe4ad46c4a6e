package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		actual    []float64
		predicted []float64
		want      Metrics
	}{
		{
			name:      "perfect forecast",
			actual:    []float64{1, 2, 3},
			predicted: []float64{1, 2, 3},
			want:      Metrics{MAE: 0, RMSE: 0, R2: 1, R2Defined: true},
		},
		{
			name:      "known errors",
			actual:    []float64{2, 4, 6, 8},
			predicted: []float64{3, 3, 7, 7},
			// SS_res = 4, SS_tot = 20
			want: Metrics{MAE: 1, RMSE: 1, R2: 0.8, R2Defined: true},
		},
		{
			name:      "worse than the mean",
			actual:    []float64{1, 3},
			predicted: []float64{3, 1},
			want:      Metrics{MAE: 2, RMSE: 2, R2: -3, R2Defined: true},
		},
		{
			name:      "constant actual values",
			actual:    []float64{5, 5, 5},
			predicted: []float64{4, 5, 6},
			want:      Metrics{MAE: 2.0 / 3, RMSE: math.Sqrt(2.0 / 3), R2: 0, R2Defined: false},
		},
		{
			name:      "constant with rounding noise",
			actual:    []float64{0.1, 0.1, 0.1},
			predicted: []float64{0.1, 0.1, 0.1},
			want:      Metrics{R2: 0, R2Defined: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.actual, tt.predicted)
			require.NoError(t, err)

			assert.InDelta(t, tt.want.MAE, got.MAE, 1e-12)
			assert.InDelta(t, tt.want.RMSE, got.RMSE, 1e-12)
			assert.InDelta(t, tt.want.R2, got.R2, 1e-12)
			assert.Equal(t, tt.want.R2Defined, got.R2Defined)
			assert.False(t, math.IsNaN(got.R2))
		})
	}
}

func TestCompute_InvalidInput(t *testing.T) {
	_, err := Compute(nil, nil)
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))

	_, err = Compute([]float64{1, 2}, []float64{1})
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
}
