package features

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

func series(start time.Time, n int, value func(i int) float64) []shipment.Point {
	out := make([]shipment.Point, n)
	for i := range out {
		out[i] = shipment.Point{Date: start.AddDate(0, 0, i), Value: value(i)}
	}
	return out
}

func TestBuild(t *testing.T) {
	// 2023-06-01 is a Thursday; 2023-06-06 is a holiday.
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	cal, err := holiday.New()
	require.NoError(t, err)

	input := series(start, 20, func(i int) float64 { return float64(i + 1) })
	rows, err := Build(input, cal)
	require.NoError(t, err)

	require.Len(t, rows, len(input)-MaxLag)

	first := rows[0]
	assert.Equal(t, start.AddDate(0, 0, 7), first.Date)
	assert.Equal(t, 8.0, first.Value)
	assert.Equal(t, 7.0, first.Lag1)
	assert.Equal(t, 1.0, first.Lag7)
	assert.Equal(t, 4.0, first.RollingMean7, "mean of 1..7 excludes the current day")
	assert.Equal(t, 3, first.Weekday, "2023-06-08 is a Thursday")

	last := rows[len(rows)-1]
	assert.Equal(t, 19.0, last.Lag1)
	assert.Equal(t, 13.0, last.Lag7)
	assert.Equal(t, 16.0, last.RollingMean7)

	for _, r := range rows {
		assert.False(t, r.IsHoliday, "the only holiday falls inside the dropped prefix")
	}
}

func TestBuild_ExactHolidayOnly(t *testing.T) {
	start := time.Date(2023, 5, 25, 0, 0, 0, 0, time.UTC)
	cal, err := holiday.New()
	require.NoError(t, err)

	rows, err := Build(series(start, 20, func(int) float64 { return 5 }), cal)
	require.NoError(t, err)

	flagged := map[string]bool{}
	for _, r := range rows {
		if r.IsHoliday {
			flagged[r.Date.Format(shipment.DayLayout)] = true
			assert.Equal(t, 1.0, r.HolidayFlag())
		}
	}
	assert.Equal(t, map[string]bool{"2023-06-06": true}, flagged)
}

func TestBuild_LengthProperty(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, n := range []int{0, 1, 7, 8, 30, 365} {
		rows, err := Build(series(start, n, func(i int) float64 { return float64(i % 9) }), nil)
		require.NoError(t, err)

		want := n - MaxLag
		if want < 0 {
			want = 0
		}
		assert.Len(t, rows, want, "n=%d", n)
	}
}

func TestBuild_RejectsUnorderedInput(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	input := series(start, 10, func(int) float64 { return 1 })
	input[4], input[5] = input[5], input[4]

	_, err := Build(input, nil)
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
}

func TestGaps(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	input := []shipment.Point{
		{Date: start},
		{Date: start.AddDate(0, 0, 1)},
		{Date: start.AddDate(0, 0, 4)},
		{Date: start.AddDate(0, 0, 5)},
	}
	assert.Equal(t, 2, Gaps(input))
	assert.Zero(t, Gaps(input[:2]))
}

func TestSplit(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, err := Build(series(start, 40, func(i int) float64 { return float64(i) }), nil)
	require.NoError(t, err)
	require.Len(t, rows, 33)

	tests := []struct {
		name         string
		periodDays   int
		wantTrain    int
		insufficient bool
		invalid      bool
	}{
		{name: "fourteen days", periodDays: 14, wantTrain: 19},
		{name: "thirty days", periodDays: 30, wantTrain: 3},
		{name: "one training row", periodDays: 32, wantTrain: 1},
		{name: "equal to row count", periodDays: 33, insufficient: true},
		{name: "longer than series", periodDays: 60, insufficient: true},
		{name: "zero", periodDays: 0, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			train, test, err := Split(rows, tt.periodDays)
			switch {
			case tt.insufficient:
				assert.True(t, stderrors.Is(err, apperrors.ErrInsufficientHistory))
			case tt.invalid:
				assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
			default:
				require.NoError(t, err)
				assert.Len(t, train, tt.wantTrain)
				assert.Len(t, test, tt.periodDays)
				assert.Equal(t, rows[len(rows)-1], test[len(test)-1])
				assert.True(t, train[len(train)-1].Date.Before(test[0].Date))
			}
		})
	}
}
