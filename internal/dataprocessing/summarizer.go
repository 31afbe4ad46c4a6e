package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// Summarizer produces the per-center tables of the dashboard.
type Summarizer struct {
	logger *slog.Logger
}

// NewSummarizer creates a summarizer. A nil logger falls back to slog.Default.
func NewSummarizer(logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{logger: logger.With(slog.String("component", "summarizer"))}
}

// Summarize computes mean, sample std, min and max of every selected item at
// every selected center. Empty centers or items select all of them. Results
// are ordered by center, then by item column order.
func (s *Summarizer) Summarize(ctx context.Context, ds *shipment.Dataset, centers, items []string) ([]ItemSummary, error) {
	itemIdx, err := resolveItems(ds, items)
	if err != nil {
		return nil, err
	}

	records, err := ds.Filter(shipment.Selection{Centers: centers})
	if err != nil {
		return nil, err
	}

	columns := make(map[string][]stats.Float64Data)
	var order []string
	for _, r := range records {
		cols, ok := columns[r.Center]
		if !ok {
			cols = make([]stats.Float64Data, len(itemIdx))
			order = append(order, r.Center)
		}
		for j, idx := range itemIdx {
			cols[j] = append(cols[j], r.Volumes[idx])
		}
		columns[r.Center] = cols
	}
	sort.Strings(order)

	allItems := ds.Items()
	out := make([]ItemSummary, 0, len(order)*len(itemIdx))
	for _, center := range order {
		for j, idx := range itemIdx {
			summary, err := summarize(columns[center][j])
			if err != nil {
				return nil, fmt.Errorf("summarize %s/%s: %w", center, allItems[idx], err)
			}
			summary.Center, summary.Item = center, allItems[idx]
			out = append(out, summary)
		}
	}

	s.logger.DebugContext(ctx, "summary computed",
		slog.Int("centers", len(order)),
		slog.Int("items", len(itemIdx)),
		slog.Int("rows", len(records)))
	return out, nil
}

func summarize(values stats.Float64Data) (ItemSummary, error) {
	var out ItemSummary
	var err error

	out.Count = len(values)
	if out.Mean, err = stats.Mean(values); err != nil {
		return out, err
	}
	if out.Min, err = stats.Min(values); err != nil {
		return out, err
	}
	if out.Max, err = stats.Max(values); err != nil {
		return out, err
	}
	if len(values) > 1 {
		if out.Std, err = stats.StandardDeviationSample(values); err != nil {
			return out, err
		}
	}
	return out, nil
}

// CompareCenters returns the volume of each selected item at each selected
// center on a single day, in long format.
func (s *Summarizer) CompareCenters(ctx context.Context, ds *shipment.Dataset, date time.Time, centers, items []string) ([]CenterVolume, error) {
	itemIdx, err := resolveItems(ds, items)
	if err != nil {
		return nil, err
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	records, err := ds.Filter(shipment.Selection{Centers: centers, From: day, To: day})
	if err != nil {
		return nil, err
	}

	allItems := ds.Items()
	out := make([]CenterVolume, 0, len(records)*len(itemIdx))
	for _, r := range records {
		for _, idx := range itemIdx {
			out = append(out, CenterVolume{Center: r.Center, Item: allItems[idx], Volume: r.Volumes[idx]})
		}
	}

	s.logger.DebugContext(ctx, "centers compared",
		slog.String("date", day.Format(shipment.DayLayout)),
		slog.Int("centers", len(records)))
	return out, nil
}

// ItemTrend pivots one item into a date by center table. year and month of 0
// leave that part of the date unfiltered.
func (s *Summarizer) ItemTrend(ctx context.Context, ds *shipment.Dataset, item string, centers []string, year, month int) (*Trend, error) {
	if month < 0 || month > 12 {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("month must be within 1..12, got %d", month))
	}
	itemIdx, err := resolveItems(ds, []string{item})
	if err != nil {
		return nil, err
	}
	idx := itemIdx[0]

	records, err := ds.Filter(shipment.Selection{Centers: centers, Year: year, Month: month})
	if err != nil {
		return nil, err
	}

	column := make(map[string]int)
	for _, r := range records {
		if _, ok := column[r.Center]; !ok {
			column[r.Center] = 0
		}
	}
	trend := &Trend{Item: item, Centers: make([]string, 0, len(column))}
	for c := range column {
		trend.Centers = append(trend.Centers, c)
	}
	sort.Strings(trend.Centers)
	for i, c := range trend.Centers {
		column[c] = i
	}

	// records are ordered by date, then center
	for _, r := range records {
		n := len(trend.Rows)
		if n == 0 || !trend.Rows[n-1].Date.Equal(r.Date) {
			trend.Rows = append(trend.Rows, TrendRow{Date: r.Date, Values: make([]*float64, len(trend.Centers))})
			n++
		}
		v := r.Volumes[idx]
		trend.Rows[n-1].Values[column[r.Center]] = &v
	}

	s.logger.DebugContext(ctx, "item trend built",
		slog.String("item", item),
		slog.Int("dates", len(trend.Rows)),
		slog.Int("centers", len(trend.Centers)))
	return trend, nil
}

// resolveItems maps item names to column indexes; an empty list selects all.
func resolveItems(ds *shipment.Dataset, items []string) ([]int, error) {
	if len(items) == 0 {
		all := make([]int, len(ds.Items()))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	out := make([]int, 0, len(items))
	for _, item := range items {
		idx, ok := ds.ItemIndex(item)
		if !ok {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown item %q", item))
		}
		out = append(out, idx)
	}
	return out, nil
}
