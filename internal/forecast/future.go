package forecast

import (
	"fmt"
	"time"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/features"
	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// MaxHorizon bounds how far past the data a forecast may project.
const MaxHorizon = 365

// FutureRows builds horizon rows for the days after the last observation.
// Values are unknown and left at zero. lag_1 is forward-filled from the last
// known value (0 for an empty history); lag_7 and rolling_mean_7 use the
// observed values where the look-back reaches into the history and the last
// known value otherwise.
func FutureRows(history []shipment.Point, horizon int, cal *holiday.Calendar) ([]features.Row, error) {
	if horizon <= 0 || horizon > MaxHorizon {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("horizon must be within 1..%d, got %d", MaxHorizon, horizon))
	}
	if len(history) == 0 {
		return nil, apperrors.NewNoDataError("forecast history")
	}

	lastKnown := history[len(history)-1].Value
	lastDate := history[len(history)-1].Date

	// Known values followed by forward-filled placeholders for the horizon.
	extended := make([]float64, 0, len(history)+horizon)
	extended = append(extended, shipment.Values(history)...)
	for i := 0; i < horizon; i++ {
		extended = append(extended, lastKnown)
	}

	dates := make([]time.Time, horizon)
	for i := range dates {
		dates[i] = lastDate.AddDate(0, 0, i+1)
	}

	var holidays map[time.Time]string
	if cal != nil {
		holidays = cal.Holidays(holiday.Years(dates...)...)
	}

	rows := make([]features.Row, horizon)
	for i, d := range dates {
		pos := len(history) + i
		_, isHoliday := holidays[holiday.Day(d)]

		row := features.Row{
			Date:      d,
			Weekday:   shipment.Weekday(d),
			IsHoliday: isHoliday,
			Lag1:      lastKnown,
			Lag7:      lastKnown,
		}
		if pos-features.MaxLag >= 0 {
			row.Lag7 = extended[pos-features.MaxLag]
		}

		var sum float64
		count := 0
		for k := pos - features.MaxLag; k < pos; k++ {
			if k >= 0 {
				sum += extended[k]
				count++
			}
		}
		row.RollingMean7 = sum / float64(count)
		rows[i] = row
	}
	return rows, nil
}
