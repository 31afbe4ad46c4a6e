package evaluation

import (
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// DefaultWorstN is the number of series explained by Diagnose.
const DefaultWorstN = 10

// Error causes attributed by Diagnose
const (
	CauseHoliday         = "holiday in test window"
	CauseLevelShift      = "sharp rise or fall"
	CauseWeekdayUnderfit = "weekday pattern under-fitted"
	CauseOutlier         = "outlier in test window"
	CauseUnclear         = "pattern unclear"
)

// Thresholds of the error-cause heuristic
const (
	levelShiftRatio    = 0.5
	weekdaySpreadRatio = 1.5
	outlierZScore      = 3.0
	levelShiftEpsilon  = 1e-6
)

// Diagnose picks the worst n records by RMSE and attributes their error to one
// or more causes. It is a heuristic explanation, not a statistical test:
//
//   - an exact holiday among the test dates;
//   - |last - first| / (mean + 1e-6) of the actual values above 0.5;
//   - the mean weekday-grouped std of the actual values above 1.5 times that of
//     the predictions (weekdays with fewer than two test days are ignored);
//   - an actual value with |z| > 3, z taken with the population std of the
//     test window.
//
// When none apply the record is labelled "pattern unclear". Records without an
// attached evaluation cannot be explained and are left out. The returned
// records are copies ordered by descending RMSE.
func Diagnose(records []PerformanceRecord, cal *holiday.Calendar, n int) []PerformanceRecord {
	if n <= 0 {
		n = DefaultWorstN
	}

	candidates := make([]PerformanceRecord, 0, len(records))
	for _, r := range records {
		if r.Evaluation != nil && len(r.Evaluation.Actual) > 0 {
			candidates = append(candidates, r)
		}
	}
	SortRecords(candidates, SortByRMSE, true)
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	for i := range candidates {
		candidates[i].Causes = causesOf(candidates[i], cal)
	}
	return candidates
}

func causesOf(r PerformanceRecord, cal *holiday.Calendar) []string {
	eval := r.Evaluation
	actual := eval.Actual
	predicted := eval.PredictedValues()

	var causes []string

	if cal != nil {
		for _, d := range eval.Dates {
			if cal.IsHoliday(d) {
				causes = append(causes, CauseHoliday)
				break
			}
		}
	}

	mean, _ := stats.Mean(actual)
	swing := (actual[len(actual)-1] - actual[0]) / (mean + levelShiftEpsilon)
	if math.Abs(swing) > levelShiftRatio {
		causes = append(causes, CauseLevelShift)
	}

	trueSpread, okTrue := meanWeekdayStd(eval.Dates, actual)
	predSpread, okPred := meanWeekdayStd(eval.Dates, predicted)
	if okTrue && okPred && trueSpread > weekdaySpreadRatio*predSpread {
		causes = append(causes, CauseWeekdayUnderfit)
	}

	if std, err := stats.StandardDeviationPopulation(actual); err == nil && std > 0 {
		for _, v := range actual {
			if math.Abs((v-mean)/std) > outlierZScore {
				causes = append(causes, CauseOutlier)
				break
			}
		}
	}

	if len(causes) == 0 {
		causes = []string{CauseUnclear}
	}
	return causes
}

// meanWeekdayStd averages the sample std of each weekday group with at least
// two values. ok is false when no group qualifies.
func meanWeekdayStd(dates []time.Time, values []float64) (float64, bool) {
	groups := make(map[int]stats.Float64Data)
	for i, d := range dates {
		wd := shipment.Weekday(d)
		groups[wd] = append(groups[wd], values[i])
	}

	weekdays := make([]int, 0, len(groups))
	for wd := range groups {
		weekdays = append(weekdays, wd)
	}
	sort.Ints(weekdays)

	var stds stats.Float64Data
	for _, wd := range weekdays {
		if len(groups[wd]) < 2 {
			continue
		}
		sd, err := stats.StandardDeviationSample(groups[wd])
		if err == nil {
			stds = append(stds, sd)
		}
	}
	if len(stds) == 0 {
		return 0, false
	}
	mean, _ := stats.Mean(stds)
	return mean, true
}
