package dataprocessing

import (
	"context"
	"log/slog"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// TopCentersLimit caps Insights.TopCenters.
const TopCentersLimit = 10

// FestivalLag is how many days after a holiday still count as festival days.
const FestivalLag = 2

// InsightsGenerator computes the whole-dataset insight views.
type InsightsGenerator struct {
	calendar *holiday.Calendar
	logger   *slog.Logger
}

// NewInsightsGenerator creates a generator. Without a calendar no row is a
// festival row.
func NewInsightsGenerator(cal *holiday.Calendar, logger *slog.Logger) *InsightsGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &InsightsGenerator{
		calendar: cal,
		logger:   logger.With(slog.String("component", "insights")),
	}
}

// Generate computes every insight over all rows of ds.
func (g *InsightsGenerator) Generate(ctx context.Context, ds *shipment.Dataset) (*Insights, error) {
	records, err := ds.Filter(shipment.Selection{})
	if err != nil {
		return nil, err
	}
	items := ds.Items()

	byWeekday := make([][7]stats.Float64Data, len(items))
	itemSums := make([]float64, len(items))
	festivalSums := make([]float64, len(items))
	normalSums := make([]float64, len(items))
	var festivalRows, normalRows int
	centerTotals := make(map[string]float64)
	monthTotals := make(map[string]float64)

	for _, r := range records {
		wd := shipment.Weekday(r.Date)
		festival := g.isFestival(r)
		if festival {
			festivalRows++
		} else {
			normalRows++
		}

		month := r.Date.Format("2006-01")
		for i, v := range r.Volumes {
			itemSums[i] += v
			byWeekday[i][wd] = append(byWeekday[i][wd], v)
			if festival {
				festivalSums[i] += v
			} else {
				normalSums[i] += v
			}
			centerTotals[r.Center] += v
			monthTotals[month] += v
		}
	}

	n := float64(len(records))
	out := &Insights{}

	var meanSum float64
	for i := range items {
		meanSum += itemSums[i] / n
	}
	for i, item := range items {
		share := ItemShare{Item: item, MeanVolume: itemSums[i] / n}
		if meanSum > 0 {
			share.Share = share.MeanVolume / meanSum
		}
		out.ItemShares = append(out.ItemShares, share)

		out.Weekdays = append(out.Weekdays, weekdayProfile(item, byWeekday[i]))

		fc := FestivalComparison{Item: item, FestivalRows: festivalRows, NormalRows: normalRows}
		if festivalRows > 0 {
			fc.FestivalMean = festivalSums[i] / float64(festivalRows)
		}
		if normalRows > 0 {
			fc.NormalMean = normalSums[i] / float64(normalRows)
		}
		out.Festival = append(out.Festival, fc)
	}

	for center, total := range centerTotals {
		out.TopCenters = append(out.TopCenters, CenterTotal{Center: center, Total: total})
	}
	sort.Slice(out.TopCenters, func(i, j int) bool {
		a, b := out.TopCenters[i], out.TopCenters[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Center < b.Center
	})
	if len(out.TopCenters) > TopCentersLimit {
		out.TopCenters = out.TopCenters[:TopCentersLimit]
	}

	for month, total := range monthTotals {
		out.Monthly = append(out.Monthly, MonthlyTotal{Month: month, Total: total})
	}
	sort.Slice(out.Monthly, func(i, j int) bool { return out.Monthly[i].Month < out.Monthly[j].Month })

	g.logger.InfoContext(ctx, "insights generated",
		slog.Int("rows", len(records)),
		slog.Int("festival_rows", festivalRows),
		slog.Int("months", len(out.Monthly)))
	return out, nil
}

// isFestival reports whether r falls on a holiday or up to FestivalLag days
// after one.
func (g *InsightsGenerator) isFestival(r shipment.Record) bool {
	if g.calendar == nil {
		return false
	}
	for lag := 0; lag <= FestivalLag; lag++ {
		if g.calendar.IsHoliday(r.Date.AddDate(0, 0, -lag)) {
			return true
		}
	}
	return false
}

// weekdayProfile averages each weekday and the sample std of each weekday
// group with at least two values.
func weekdayProfile(item string, groups [7]stats.Float64Data) WeekdayProfile {
	p := WeekdayProfile{Item: item}
	var stds stats.Float64Data
	for wd, values := range groups {
		if len(values) == 0 {
			continue
		}
		p.Means[wd], _ = stats.Mean(values)
		if len(values) > 1 {
			if sd, err := stats.StandardDeviationSample(values); err == nil {
				stds = append(stds, sd)
			}
		}
	}
	if len(stds) > 0 {
		p.StdDev, _ = stats.Mean(stds)
	}
	return p
}
