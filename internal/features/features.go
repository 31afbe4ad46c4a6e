// Package features derives the lag, rolling-mean, weekday and holiday
// features shared by every forecasting strategy.
package features

import (
	"fmt"
	"time"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// MaxLag is the longest look-back of any feature; the first MaxLag
// observations of a series never produce a row.
const MaxLag = 7

// Row is one series date with its derived features.
type Row struct {
	Date         time.Time `json:"date"`
	Value        float64   `json:"value"`
	Weekday      int       `json:"weekday"`
	IsHoliday    bool      `json:"is_holiday"`
	Lag1         float64   `json:"lag_1"`
	Lag7         float64   `json:"lag_7"`
	RollingMean7 float64   `json:"rolling_mean_7"`
}

// HolidayFlag returns IsHoliday as 0 or 1.
func (r Row) HolidayFlag() float64 {
	if r.IsHoliday {
		return 1
	}
	return 0
}

// Build derives feature rows from a series ordered by ascending date.
// Lags are positional: the series is assumed to have daily cadence.
// IsHoliday marks exact holidays only; a nil calendar marks none.
func Build(series []shipment.Point, cal *holiday.Calendar) ([]Row, error) {
	for i := 1; i < len(series); i++ {
		if !series[i].Date.After(series[i-1].Date) {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf(
				"series must be strictly ascending: %s follows %s",
				series[i].Date.Format(shipment.DayLayout), series[i-1].Date.Format(shipment.DayLayout)))
		}
	}

	if len(series) <= MaxLag {
		return []Row{}, nil
	}

	var holidays map[time.Time]string
	if cal != nil {
		holidays = cal.Holidays(holiday.Years(shipment.Dates(series)...)...)
	}

	rows := make([]Row, 0, len(series)-MaxLag)
	var window float64
	for i := 0; i < MaxLag; i++ {
		window += series[i].Value
	}

	for i := MaxLag; i < len(series); i++ {
		p := series[i]
		_, isHoliday := holidays[holiday.Day(p.Date)]
		rows = append(rows, Row{
			Date:         p.Date,
			Value:        p.Value,
			Weekday:      shipment.Weekday(p.Date),
			IsHoliday:    isHoliday,
			Lag1:         series[i-1].Value,
			Lag7:         series[i-MaxLag].Value,
			RollingMean7: window / MaxLag,
		})
		window += p.Value - series[i-MaxLag].Value
	}
	return rows, nil
}

// Gaps counts missing calendar days between consecutive observations.
func Gaps(series []shipment.Point) int {
	gaps := 0
	for i := 1; i < len(series); i++ {
		days := int(series[i].Date.Sub(series[i-1].Date).Hours() / 24)
		if days > 1 {
			gaps += days - 1
		}
	}
	return gaps
}

// Split holds out the final periodDays rows as the test set.
// A series with no more rows than periodDays has insufficient history.
func Split(rows []Row, periodDays int) (train, test []Row, err error) {
	if periodDays <= 0 {
		return nil, nil, apperrors.NewAppValidationError(fmt.Sprintf("period days must be positive, got %d", periodDays))
	}
	if len(rows) <= periodDays {
		return nil, nil, apperrors.NewInsufficientHistoryError(len(rows), periodDays)
	}
	cut := len(rows) - periodDays
	return rows[:cut:cut], rows[cut:], nil
}

// Values returns the target column of rows.
func Values(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Value
	}
	return out
}

// Dates returns the date column of rows.
func Dates(rows []Row) []time.Time {
	out := make([]time.Time, len(rows))
	for i, r := range rows {
		out[i] = r.Date
	}
	return out
}
