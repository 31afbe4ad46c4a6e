package dataprocessing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// 2023-06-06 is a public holiday; 2023-06-05 and 2023-07-03 are Mondays.
func testDataset(t *testing.T) *shipment.Dataset {
	t.Helper()
	ds, err := shipment.NewDataset([]string{"food", "fashion"}, []shipment.Record{
		{Date: day(2023, 6, 5), Center: "A", Volumes: []float64{10, 1}},
		{Date: day(2023, 6, 6), Center: "A", Volumes: []float64{20, 2}},
		{Date: day(2023, 6, 7), Center: "A", Volumes: []float64{30, 3}},
		{Date: day(2023, 6, 5), Center: "B", Volumes: []float64{100, 10}},
		{Date: day(2023, 6, 7), Center: "B", Volumes: []float64{300, 30}},
		{Date: day(2023, 7, 3), Center: "B", Volumes: []float64{50, 5}},
	})
	require.NoError(t, err)
	return ds
}

func TestSummarize(t *testing.T) {
	ds := testDataset(t)
	s := NewSummarizer(nil)

	got, err := s.Summarize(context.Background(), ds, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "A", got[0].Center)
	assert.Equal(t, "food", got[0].Item)
	assert.Equal(t, 3, got[0].Count)
	assert.InDelta(t, 20, got[0].Mean, 1e-9)
	assert.InDelta(t, 10, got[0].Std, 1e-9)
	assert.Equal(t, 10.0, got[0].Min)
	assert.Equal(t, 30.0, got[0].Max)

	assert.Equal(t, "fashion", got[1].Item)
	assert.Equal(t, "B", got[2].Center)
	assert.InDelta(t, 150, got[2].Mean, 1e-9)
	assert.InDelta(t, 132.2875655532, got[2].Std, 1e-6)
}

func TestSummarize_Selection(t *testing.T) {
	ds := testDataset(t)
	s := NewSummarizer(nil)

	tests := []struct {
		name     string
		centers  []string
		items    []string
		wantLen  int
		wantType apperrors.ErrorType
	}{
		{name: "one center one item", centers: []string{"A"}, items: []string{"fashion"}, wantLen: 1},
		{name: "both centers", centers: []string{"A", "B"}, items: []string{"food"}, wantLen: 2},
		{name: "unknown center", centers: []string{"Z"}, wantType: apperrors.ErrTypeNoData},
		{name: "unknown item", items: []string{"toys"}, wantType: apperrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Summarize(context.Background(), ds, tt.centers, tt.items)
			if tt.wantType != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestSummarize_SingleRowHasZeroStd(t *testing.T) {
	ds, err := shipment.NewDataset([]string{"food"}, []shipment.Record{
		{Date: day(2023, 1, 2), Center: "A", Volumes: []float64{7}},
	})
	require.NoError(t, err)

	got, err := NewSummarizer(nil).Summarize(context.Background(), ds, nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Count)
	assert.Zero(t, got[0].Std)
}

func TestCompareCenters(t *testing.T) {
	ds := testDataset(t)
	s := NewSummarizer(nil)

	got, err := s.CompareCenters(context.Background(), ds, day(2023, 6, 7), nil, []string{"food"})
	require.NoError(t, err)
	assert.Equal(t, []CenterVolume{
		{Center: "A", Item: "food", Volume: 30},
		{Center: "B", Item: "food", Volume: 300},
	}, got)

	kst := time.FixedZone("KST", 9*3600)
	got, err = s.CompareCenters(context.Background(), ds, time.Date(2023, 6, 5, 23, 0, 0, 0, kst), []string{"B"}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = s.CompareCenters(context.Background(), ds, day(2023, 6, 6), []string{"B"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrNoData)
}

func TestItemTrend(t *testing.T) {
	ds := testDataset(t)
	s := NewSummarizer(nil)

	trend, err := s.ItemTrend(context.Background(), ds, "food", nil, 2023, 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, trend.Centers)
	require.Len(t, trend.Rows, 3)

	assert.Equal(t, day(2023, 6, 6), trend.Rows[1].Date)
	require.NotNil(t, trend.Rows[1].Values[0])
	assert.Equal(t, 20.0, *trend.Rows[1].Values[0])
	assert.Nil(t, trend.Rows[1].Values[1], "B has no row on the holiday")
	assert.Equal(t, 300.0, *trend.Rows[2].Values[1])

	trend, err = s.ItemTrend(context.Background(), ds, "fashion", nil, 2023, 0)
	require.NoError(t, err)
	assert.Len(t, trend.Rows, 4)

	trend, err = s.ItemTrend(context.Background(), ds, "food", nil, 2023, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, trend.Centers)

	_, err = s.ItemTrend(context.Background(), ds, "food", nil, 2020, 0)
	assert.ErrorIs(t, err, apperrors.ErrNoData)

	_, err = s.ItemTrend(context.Background(), ds, "food", nil, 2023, 13)
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))

	_, err = s.ItemTrend(context.Background(), ds, "toys", nil, 0, 0)
	assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
}

func TestInsights(t *testing.T) {
	cal, err := holiday.New()
	require.NoError(t, err)

	got, err := NewInsightsGenerator(cal, nil).Generate(context.Background(), testDataset(t))
	require.NoError(t, err)

	require.Len(t, got.ItemShares, 2)
	assert.InDelta(t, 85, got.ItemShares[0].MeanVolume, 1e-9)
	assert.InDelta(t, 8.5, got.ItemShares[1].MeanVolume, 1e-9)
	assert.InDelta(t, 1.0, got.ItemShares[0].Share+got.ItemShares[1].Share, 1e-9)

	food := got.Weekdays[0]
	assert.InDelta(t, 160.0/3, food.Means[0], 1e-9)
	assert.InDelta(t, 20, food.Means[1], 1e-9)
	assert.InDelta(t, 165, food.Means[2], 1e-9)
	assert.Zero(t, food.Means[6])
	assert.InDelta(t, 118.0056642243, food.StdDev, 1e-6)

	// the holiday and the day after it count as festival rows
	fest := got.Festival[0]
	assert.Equal(t, 3, fest.FestivalRows)
	assert.Equal(t, 3, fest.NormalRows)
	assert.InDelta(t, 350.0/3, fest.FestivalMean, 1e-9)
	assert.InDelta(t, 160.0/3, fest.NormalMean, 1e-9)

	assert.Equal(t, []CenterTotal{{Center: "B", Total: 495}, {Center: "A", Total: 66}}, got.TopCenters)
	assert.Equal(t, []MonthlyTotal{{Month: "2023-06", Total: 506}, {Month: "2023-07", Total: 55}}, got.Monthly)
}

func TestInsights_WithoutCalendar(t *testing.T) {
	got, err := NewInsightsGenerator(nil, nil).Generate(context.Background(), testDataset(t))
	require.NoError(t, err)
	assert.Zero(t, got.Festival[0].FestivalRows)
	assert.Equal(t, 6, got.Festival[0].NormalRows)
}

func TestInsights_TopCentersCapped(t *testing.T) {
	var records []shipment.Record
	for i := 0; i < 12; i++ {
		records = append(records, shipment.Record{
			Date:    day(2023, 3, 1),
			Center:  string(rune('a' + i)),
			Volumes: []float64{float64(i)},
		})
	}
	ds, err := shipment.NewDataset([]string{"food"}, records)
	require.NoError(t, err)

	got, err := NewInsightsGenerator(nil, nil).Generate(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, got.TopCenters, TopCentersLimit)
	assert.Equal(t, "l", got.TopCenters[0].Center)
	assert.Equal(t, "c", got.TopCenters[TopCentersLimit-1].Center)
}
