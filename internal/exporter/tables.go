package exporter

import (
	"strings"

	"github.com/kosonkh7/SOPO-Dashboard/internal/anomaly"
	"github.com/kosonkh7/SOPO-Dashboard/internal/dataprocessing"
	"github.com/kosonkh7/SOPO-Dashboard/internal/evaluation"
)

// Sheet names used for XLSX output
const (
	SheetSummary   = "summary"
	SheetRanking   = "ranking"
	SheetDiagnosis = "diagnosis"
	SheetAnomalies = "anomalies"
)

// Table is a named grid of cells. Cells hold strings, numbers, bools or
// dates and keep their type in XLSX output.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}

// Strings renders every row as CSV text.
func (t Table) Strings() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatCell(v)
		}
		out[i] = cells
	}
	return out
}

// SummaryTable lays out per-center item statistics.
func SummaryTable(summaries []dataprocessing.ItemSummary) Table {
	t := Table{
		Name:    SheetSummary,
		Headers: []string{"center", "item", "count", "mean", "std", "min", "max"},
		Rows:    make([][]interface{}, 0, len(summaries)),
	}
	for _, s := range summaries {
		t.Rows = append(t.Rows, []interface{}{s.Center, s.Item, s.Count, s.Mean, s.Std, s.Min, s.Max})
	}
	return t
}

// RankingTable lays out ranked series in their current order.
func RankingTable(records []evaluation.PerformanceRecord) Table {
	t := Table{
		Name:    SheetRanking,
		Headers: []string{"rank", "center", "item", "mae", "rmse", "r2", "r2_defined"},
		Rows:    make([][]interface{}, 0, len(records)),
	}
	for i, r := range records {
		t.Rows = append(t.Rows, []interface{}{i + 1, r.Center, r.Item, r.MAE, r.RMSE, r.R2, r.R2Defined})
	}
	return t
}

// DiagnosisTable lays out diagnosed series with their causes joined by "; ".
func DiagnosisTable(records []evaluation.PerformanceRecord) Table {
	t := Table{
		Name:    SheetDiagnosis,
		Headers: []string{"center", "item", "rmse", "mae", "causes"},
		Rows:    make([][]interface{}, 0, len(records)),
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []interface{}{r.Center, r.Item, r.RMSE, r.MAE, strings.Join(r.Causes, "; ")})
	}
	return t
}

// AnomalyTable lays out the flagged points of each report.
func AnomalyTable(reports []anomaly.SeriesReport) Table {
	t := Table{
		Name: SheetAnomalies,
		Headers: []string{"center", "item", "date", "weekday", "value", "weekday_mean",
			"weekday_std", "z_score", "holiday_related", "holiday_name"},
	}
	for _, rep := range reports {
		for _, o := range rep.Flagged() {
			t.Rows = append(t.Rows, []interface{}{
				rep.Center, rep.Item, o.Date, o.Weekday, o.Value, o.WeekdayMean,
				o.WeekdayStd, o.ZScore, o.IsHolidayRelated, o.HolidayName,
			})
		}
	}
	return t
}
