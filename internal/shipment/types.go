package shipment

import (
	"fmt"
	"sort"
	"time"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
)

const (
	// ItemColumnCount is the number of item-volume columns following date and center_name.
	ItemColumnCount = 11

	// DateLayout is the on-disk date format.
	DateLayout = "20060102"

	// DayLayout is the date format used in every API and report.
	DayLayout = "2006-01-02"
)

// Record is one row of the shipment table: one center on one day.
type Record struct {
	Date    time.Time
	Center  string
	Volumes []float64 // aligned with Dataset.Items
}

// Point is a single observation of a (center, item) series.
type Point struct {
	Date  time.Time
	Value float64
}

// Selection narrows the records returned by Dataset.Filter.
// Zero values leave the corresponding dimension unfiltered.
type Selection struct {
	Centers []string
	From    time.Time
	To      time.Time // inclusive
	Year    int
	Month   int
}

func (s Selection) String() string {
	out := "all records"
	if len(s.Centers) > 0 {
		out = fmt.Sprintf("centers %v", s.Centers)
	}
	if !s.From.IsZero() || !s.To.IsZero() {
		out += fmt.Sprintf(" between %s and %s", s.From.Format(DayLayout), s.To.Format(DayLayout))
	}
	if s.Year > 0 {
		out += fmt.Sprintf(" in %d", s.Year)
		if s.Month > 0 {
			out += fmt.Sprintf("-%02d", s.Month)
		}
	}
	return out
}

func (s Selection) matches(r Record, centers map[string]struct{}) bool {
	if centers != nil {
		if _, ok := centers[r.Center]; !ok {
			return false
		}
	}
	if !s.From.IsZero() && r.Date.Before(s.From) {
		return false
	}
	if !s.To.IsZero() && r.Date.After(s.To) {
		return false
	}
	if s.Year > 0 && r.Date.Year() != s.Year {
		return false
	}
	if s.Month > 0 && int(r.Date.Month()) != s.Month {
		return false
	}
	return true
}

// Dataset is the loaded shipment table. It is never mutated after construction
// and is safe for concurrent use.
type Dataset struct {
	items    []string
	itemIdx  map[string]int
	records  []Record // ordered by (date, center)
	centers  []string
	byCenter map[string][]int
}

// NewDataset indexes records. Records are copied and sorted by (date, center);
// a duplicate (date, center) pair is rejected.
func NewDataset(items []string, records []Record) (*Dataset, error) {
	if len(items) == 0 {
		return nil, apperrors.NewParsingError("dataset has no item columns", nil)
	}

	ds := &Dataset{
		items:    append([]string(nil), items...),
		itemIdx:  make(map[string]int, len(items)),
		records:  make([]Record, 0, len(records)),
		byCenter: make(map[string][]int),
	}
	for i, item := range items {
		if _, dup := ds.itemIdx[item]; dup {
			return nil, apperrors.NewParsingError(fmt.Sprintf("duplicate item column %q", item), nil)
		}
		ds.itemIdx[item] = i
	}

	for _, r := range records {
		if len(r.Volumes) != len(items) {
			return nil, apperrors.NewParsingError(
				fmt.Sprintf("record %s/%s has %d volumes, want %d", r.Date.Format(DayLayout), r.Center, len(r.Volumes), len(items)), nil)
		}
		ds.records = append(ds.records, Record{
			Date:    r.Date,
			Center:  r.Center,
			Volumes: append([]float64(nil), r.Volumes...),
		})
	}

	sort.SliceStable(ds.records, func(i, j int) bool {
		a, b := ds.records[i], ds.records[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Center < b.Center
	})

	for i, r := range ds.records {
		if i > 0 {
			prev := ds.records[i-1]
			if prev.Date.Equal(r.Date) && prev.Center == r.Center {
				return nil, apperrors.NewParsingError(
					fmt.Sprintf("duplicate row for center %q on %s", r.Center, r.Date.Format(DayLayout)), nil)
			}
		}
		if _, ok := ds.byCenter[r.Center]; !ok {
			ds.centers = append(ds.centers, r.Center)
		}
		ds.byCenter[r.Center] = append(ds.byCenter[r.Center], i)
	}
	sort.Strings(ds.centers)

	return ds, nil
}

// Items returns the item names in column order.
func (d *Dataset) Items() []string {
	return append([]string(nil), d.items...)
}

// Centers returns the center names in lexical order.
func (d *Dataset) Centers() []string {
	return append([]string(nil), d.centers...)
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// DateRange returns the first and last date in the dataset.
func (d *Dataset) DateRange() (time.Time, time.Time) {
	if len(d.records) == 0 {
		return time.Time{}, time.Time{}
	}
	return d.records[0].Date, d.records[len(d.records)-1].Date
}

// ItemIndex returns the column index of item.
func (d *Dataset) ItemIndex(item string) (int, bool) {
	i, ok := d.itemIdx[item]
	return i, ok
}

// HasCenter reports whether any record belongs to center.
func (d *Dataset) HasCenter(center string) bool {
	_, ok := d.byCenter[center]
	return ok
}

// Series returns the (date, value) projection of one center and item,
// ascending by date.
func (d *Dataset) Series(center, item string) ([]Point, error) {
	col, ok := d.itemIdx[item]
	if !ok {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown item %q", item))
	}
	idx, ok := d.byCenter[center]
	if !ok {
		return nil, apperrors.NewNoDataError(fmt.Sprintf("center %q", center))
	}

	points := make([]Point, len(idx))
	for i, ri := range idx {
		r := d.records[ri]
		points[i] = Point{Date: r.Date, Value: r.Volumes[col]}
	}
	return points, nil
}

// Filter returns copies of the records matching sel, ordered by (date, center).
// An empty result is reported as ErrNoData.
func (d *Dataset) Filter(sel Selection) ([]Record, error) {
	var centers map[string]struct{}
	if len(sel.Centers) > 0 {
		centers = make(map[string]struct{}, len(sel.Centers))
		for _, c := range sel.Centers {
			centers[c] = struct{}{}
		}
	}

	var out []Record
	for _, r := range d.records {
		if !sel.matches(r, centers) {
			continue
		}
		out = append(out, Record{
			Date:    r.Date,
			Center:  r.Center,
			Volumes: append([]float64(nil), r.Volumes...),
		})
	}

	if len(out) == 0 {
		return nil, apperrors.NewNoDataError(sel.String())
	}
	return out, nil
}

// Weekday returns the day of week with Monday as 0 and Sunday as 6.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Dates returns the dates of points in order.
func Dates(points []Point) []time.Time {
	out := make([]time.Time, len(points))
	for i, p := range points {
		out[i] = p.Date
	}
	return out
}

// Values returns the values of points in order.
func Values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
