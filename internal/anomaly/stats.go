package anomaly

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// degenerateTolerance bounds the relative spread below which a weekday
// standard deviation is treated as zero.
const degenerateTolerance = 1e-9

// WeekdayStat holds the sample mean and standard deviation of one weekday.
type WeekdayStat struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Count int     `json:"count"`
}

// Evaluable reports whether a z-score against this stat is defined.
func (s WeekdayStat) Evaluable() bool {
	if s.Count < 2 || math.IsNaN(s.Std) {
		return false
	}
	return s.Std > degenerateTolerance*math.Max(1, math.Abs(s.Mean))
}

// WeekdayStats is indexed by shipment.Weekday (Monday = 0).
type WeekdayStats [7]WeekdayStat

// ComputeWeekdayStats groups the series by weekday and computes the mean and
// sample standard deviation (n-1 denominator) of each group.
func ComputeWeekdayStats(series []shipment.Point) WeekdayStats {
	var groups [7]stats.Float64Data
	for _, p := range series {
		wd := shipment.Weekday(p.Date)
		groups[wd] = append(groups[wd], p.Value)
	}

	var out WeekdayStats
	for wd, values := range groups {
		out[wd].Count = len(values)
		if len(values) == 0 {
			continue
		}
		out[wd].Mean, _ = stats.Mean(values)
		if len(values) >= 2 {
			out[wd].Std, _ = stats.StandardDeviationSample(values)
		}
	}
	return out
}
