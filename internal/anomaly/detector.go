// Package anomaly flags unusual daily volumes with a weekday-conditioned
// z-score and tags observations that fall near a public holiday.
package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// DefaultThreshold is the |z| above which an observation is an outlier.
const DefaultThreshold = 2.5

// OutlierRecord is the scored form of one observation.
//
// When the weekday group has fewer than two samples or no spread, the score is
// not evaluable: ZScore is 0 and IsOutlier is false.
type OutlierRecord struct {
	Date             time.Time `json:"date"`
	Value            float64   `json:"value"`
	Weekday          int       `json:"weekday"`
	WeekdayMean      float64   `json:"weekday_mean"`
	WeekdayStd       float64   `json:"weekday_std"`
	ZScore           float64   `json:"z_score"`
	Evaluable        bool      `json:"evaluable"`
	IsOutlier        bool      `json:"is_outlier"`
	IsHolidayRelated bool      `json:"is_holiday_related"`
	HolidayName      string    `json:"holiday_name,omitempty"`
}

// Options configures a Detector.
type Options struct {
	Threshold     float64
	HolidayWindow bool
	WindowRadius  int
}

// DefaultOptions returns threshold 2.5 with holiday tagging over ±2 days.
func DefaultOptions() Options {
	return Options{
		Threshold:     DefaultThreshold,
		HolidayWindow: true,
		WindowRadius:  holiday.DefaultWindowRadius,
	}
}

// Detector scores series. It holds no per-series state.
type Detector struct {
	opts     Options
	calendar *holiday.Calendar
	logger   *slog.Logger
}

// NewDetector creates a detector. A nil calendar disables holiday tagging.
func NewDetector(calendar *holiday.Calendar, opts Options, logger *slog.Logger) *Detector {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.WindowRadius < 0 {
		opts.WindowRadius = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		opts:     opts,
		calendar: calendar,
		logger:   logger.With(slog.String("component", "anomaly_detector")),
	}
}

// Threshold returns the configured |z| cut-off.
func (d *Detector) Threshold() float64 {
	return d.opts.Threshold
}

// Detect scores every observation against the weekday statistics of the same series.
func (d *Detector) Detect(series []shipment.Point) []OutlierRecord {
	return d.Score(series, ComputeWeekdayStats(series))
}

// Score scores every observation against externally supplied weekday statistics,
// e.g. a baseline period.
func (d *Detector) Score(series []shipment.Point, baseline WeekdayStats) []OutlierRecord {
	window := d.holidayWindow(series)

	out := make([]OutlierRecord, len(series))
	for i, p := range series {
		wd := shipment.Weekday(p.Date)
		stat := baseline[wd]

		rec := OutlierRecord{
			Date:        p.Date,
			Value:       p.Value,
			Weekday:     wd,
			WeekdayMean: stat.Mean,
			WeekdayStd:  stat.Std,
		}
		if stat.Evaluable() {
			rec.Evaluable = true
			rec.ZScore = (p.Value - stat.Mean) / stat.Std
			rec.IsOutlier = math.Abs(rec.ZScore) > d.opts.Threshold
		}
		if name, ok := window[holiday.Day(p.Date)]; ok {
			rec.IsHolidayRelated = true
			rec.HolidayName = name
		}
		out[i] = rec
	}
	return out
}

func (d *Detector) holidayWindow(series []shipment.Point) map[time.Time]string {
	if !d.opts.HolidayWindow || d.calendar == nil || len(series) == 0 {
		return nil
	}
	return d.calendar.Window(d.opts.WindowRadius, holiday.Years(shipment.Dates(series)...)...)
}

// SeriesReport is the detection result of one (center, item) series.
type SeriesReport struct {
	Center                 string          `json:"center"`
	Item                   string          `json:"item"`
	Records                []OutlierRecord `json:"records"`
	Outliers               int             `json:"outliers"`
	HolidayRelatedOutliers int             `json:"holiday_related_outliers"`
	NotEvaluable           int             `json:"not_evaluable"`
}

// Flagged returns only the outlier records.
func (r SeriesReport) Flagged() []OutlierRecord {
	var out []OutlierRecord
	for _, rec := range r.Records {
		if rec.IsOutlier {
			out = append(out, rec)
		}
	}
	return out
}

// DetectAll runs Detect over every requested (center, item) pair.
// Empty centers or items select all of them.
func (d *Detector) DetectAll(ctx context.Context, ds *shipment.Dataset, centers, items []string) ([]SeriesReport, error) {
	if len(centers) == 0 {
		centers = ds.Centers()
	}
	if len(items) == 0 {
		items = ds.Items()
	}

	reports := make([]SeriesReport, 0, len(centers)*len(items))
	for _, center := range centers {
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("detect anomalies: %w", err)
			}

			series, err := ds.Series(center, item)
			if err != nil {
				return nil, fmt.Errorf("series %s/%s: %w", center, item, err)
			}

			report := SeriesReport{Center: center, Item: item, Records: d.Detect(series)}
			for _, rec := range report.Records {
				switch {
				case !rec.Evaluable:
					report.NotEvaluable++
				case rec.IsOutlier:
					report.Outliers++
					if rec.IsHolidayRelated {
						report.HolidayRelatedOutliers++
					}
				}
			}
			reports = append(reports, report)
		}
	}

	d.logger.DebugContext(ctx, "anomaly sweep completed",
		slog.Int("series", len(reports)),
		slog.Float64("threshold", d.opts.Threshold))
	return reports, nil
}
