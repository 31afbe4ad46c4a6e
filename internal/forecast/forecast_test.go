package forecast

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/features"
	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

var seriesStart = time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

func makeSeries(n int, value func(i int, d time.Time) float64) []shipment.Point {
	out := make([]shipment.Point, n)
	for i := range out {
		d := seriesStart.AddDate(0, 0, i)
		out[i] = shipment.Point{Date: d, Value: value(i, d)}
	}
	return out
}

func weeklyPattern(_ int, d time.Time) float64 {
	if shipment.Weekday(d) >= 5 {
		return 150
	}
	return 100
}

func seasonalPattern(_ int, d time.Time) float64 {
	t := float64(d.Unix()) / 86400
	return weeklyPattern(0, d) + 30*math.Sin(2*math.Pi*t/YearlyPeriod)
}

func buildRows(t *testing.T, series []shipment.Point) []features.Row {
	t.Helper()
	rows, err := features.Build(series, nil)
	require.NoError(t, err)
	return rows
}

func meanAbsError(e *Evaluation) float64 {
	var sum float64
	for i, p := range e.Predictions {
		sum += math.Abs(e.Actual[i] - p.Value)
	}
	return sum / float64(len(e.Predictions))
}

func TestClamp(t *testing.T) {
	lo, hi := -5.0, -1.0
	results := Clamp([]Result{
		{Value: -3, Lower: &lo, Upper: &hi},
		{Value: 7},
	})

	assert.Equal(t, 0.0, results[0].Value)
	assert.Equal(t, 0.0, *results[0].Lower)
	assert.Equal(t, 0.0, *results[0].Upper)
	assert.Equal(t, 7.0, results[1].Value)
	assert.Nil(t, results[1].Lower)
}

type stubStrategy struct {
	fit     func() (Model, error)
	predict func(rows []features.Row) ([]Result, error)
}

func (s stubStrategy) Name() string { return "stub" }

func (s stubStrategy) Fit(context.Context, []features.Row) (Model, error) {
	if s.fit != nil {
		return s.fit()
	}
	return stubModel{predict: s.predict}, nil
}

type stubModel struct {
	predict func(rows []features.Row) ([]Result, error)
}

func (m stubModel) Predict(rows []features.Row) ([]Result, error) { return m.predict(rows) }

func TestRun_FailuresBecomeModelFitErrors(t *testing.T) {
	rows := buildRows(t, makeSeries(60, weeklyPattern))

	tests := []struct {
		name     string
		strategy Strategy
	}{
		{"panic in fit", stubStrategy{fit: func() (Model, error) { panic("boom") }}},
		{"error in fit", stubStrategy{fit: func() (Model, error) { return nil, fmt.Errorf("diverged") }}},
		{"panic in predict", stubStrategy{predict: func([]features.Row) ([]Result, error) {
			var s []Result
			return s[:1], nil
		}}},
		{"short prediction", stubStrategy{predict: func([]features.Row) ([]Result, error) { return nil, nil }}},
		{"NaN prediction", stubStrategy{predict: func(rows []features.Row) ([]Result, error) {
			out := make([]Result, len(rows))
			out[0].Value = math.NaN()
			return out, nil
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.strategy, rows, 14)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, apperrors.ErrModelFit), "got %v", err)
		})
	}
}

func TestRun_InsufficientHistory(t *testing.T) {
	rows := buildRows(t, makeSeries(20, weeklyPattern))

	for _, s := range []Strategy{
		NewSeasonalRegression(DefaultSeasonalOptions()),
		NewGradientBoosting(DefaultBoostingOptions()),
	} {
		_, err := Run(context.Background(), s, rows, 14)
		assert.True(t, stderrors.Is(err, apperrors.ErrInsufficientHistory), s.Name())
	}
}

func TestSeasonalRegression_FitsSeasonalSeries(t *testing.T) {
	rows := buildRows(t, makeSeries(730, seasonalPattern))

	eval, err := Run(context.Background(), NewSeasonalRegression(DefaultSeasonalOptions()), rows, 14)
	require.NoError(t, err)

	require.Len(t, eval.Predictions, 14)
	assert.Equal(t, len(rows)-14, eval.TrainRows)
	assert.Less(t, meanAbsError(eval), 10.0)
	for _, p := range eval.Predictions {
		require.NotNil(t, p.Lower)
		require.NotNil(t, p.Upper)
		assert.LessOrEqual(t, *p.Lower, p.Value)
		assert.GreaterOrEqual(t, *p.Upper, p.Value)
	}
}

func TestStrategies_NeverPredictNegative(t *testing.T) {
	// Steep decline to zero drives unclamped linear predictions below zero.
	declining := makeSeries(200, func(i int, _ time.Time) float64 {
		return math.Max(0, 1000-8*float64(i))
	})
	rows := buildRows(t, declining)

	for _, s := range []Strategy{
		NewSeasonalRegression(DefaultSeasonalOptions()),
		NewGradientBoosting(DefaultBoostingOptions()),
	} {
		t.Run(s.Name(), func(t *testing.T) {
			eval, err := Run(context.Background(), s, rows, 30)
			require.NoError(t, err)
			for _, p := range eval.Predictions {
				assert.GreaterOrEqual(t, p.Value, 0.0)
				if p.Lower != nil {
					assert.GreaterOrEqual(t, *p.Lower, 0.0)
					assert.GreaterOrEqual(t, *p.Upper, 0.0)
				}
			}
		})
	}
}

func TestGradientBoosting_LearnsWeeklyPattern(t *testing.T) {
	rows := buildRows(t, makeSeries(400, weeklyPattern))

	eval, err := Run(context.Background(), NewGradientBoosting(DefaultBoostingOptions()), rows, 14)
	require.NoError(t, err)

	for i, p := range eval.Predictions {
		assert.InDelta(t, eval.Actual[i], p.Value, 1.0)
		assert.Nil(t, p.Lower)
	}
}

func TestGradientBoosting_Deterministic(t *testing.T) {
	rows := buildRows(t, makeSeries(300, func(i int, d time.Time) float64 {
		return seasonalPattern(i, d) + float64((i*37)%11)
	}))

	first, err := Run(context.Background(), NewGradientBoosting(DefaultBoostingOptions()), rows, 30)
	require.NoError(t, err)
	second, err := Run(context.Background(), NewGradientBoosting(DefaultBoostingOptions()), rows, 30)
	require.NoError(t, err)

	assert.Equal(t, first.Predictions, second.Predictions)
}

func TestGradientBoosting_ShortTrainingSet(t *testing.T) {
	rows := buildRows(t, makeSeries(30, weeklyPattern))

	eval, err := Run(context.Background(), NewGradientBoosting(DefaultBoostingOptions()), rows, 14)
	require.NoError(t, err)
	assert.Equal(t, 9, eval.TrainRows)
	assert.Len(t, eval.Predictions, 14)
}

func TestFit_HonoursCancellation(t *testing.T) {
	rows := buildRows(t, makeSeries(100, weeklyPattern))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fit(ctx, NewGradientBoosting(DefaultBoostingOptions()), rows)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFutureRows(t *testing.T) {
	cal, err := holiday.New()
	require.NoError(t, err)

	// History ends on 2023-12-29 so the horizon covers 2024-01-01.
	history := make([]shipment.Point, 10)
	end := time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC)
	for i := range history {
		history[i] = shipment.Point{Date: end.AddDate(0, 0, i-9), Value: float64(i + 1)}
	}

	rows, err := FutureRows(history, 5, cal)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	for i, r := range rows {
		assert.Equal(t, end.AddDate(0, 0, i+1), r.Date)
		assert.Equal(t, 10.0, r.Lag1, "lag_1 is forward-filled")
		assert.Zero(t, r.Value)
	}
	assert.Equal(t, 4.0, rows[0].Lag7)
	assert.Equal(t, 7.0, rows[0].RollingMean7)
	assert.Equal(t, 7.0, rows[3].Lag7)
	assert.True(t, rows[2].IsHoliday, "2024-01-01")
	assert.Equal(t, 0, rows[2].Weekday)
	assert.False(t, rows[1].IsHoliday)

	t.Run("invalid horizon", func(t *testing.T) {
		_, err := FutureRows(history, 0, cal)
		assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
	})

	t.Run("empty history", func(t *testing.T) {
		_, err := FutureRows(nil, 3, cal)
		assert.True(t, stderrors.Is(err, apperrors.ErrNoData))
	})
}

func TestSeasonalRegression_ForecastAhead(t *testing.T) {
	series := makeSeries(400, seasonalPattern)
	rows := buildRows(t, series)

	strategy := NewSeasonalRegression(DefaultSeasonalOptions())
	model, err := Fit(context.Background(), strategy, rows)
	require.NoError(t, err)

	future, err := FutureRows(series, 14, nil)
	require.NoError(t, err)

	preds, err := Predict(strategy.Name(), model, future)
	require.NoError(t, err)
	require.Len(t, preds, 14)
	for _, p := range preds {
		assert.False(t, math.IsNaN(p.Value))
		assert.GreaterOrEqual(t, p.Value, 0.0)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(NewGradientBoosting(DefaultBoostingOptions()), NewSeasonalRegression(DefaultSeasonalOptions()))

	assert.Equal(t, []string{GradientBoostingName, SeasonalRegressionName}, reg.Names())

	s, err := reg.Get(SeasonalRegressionName)
	require.NoError(t, err)
	assert.Equal(t, SeasonalRegressionName, s.Name())

	_, err = reg.Get("prophet")
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
	assert.Len(t, reg.All(), 2)
}
