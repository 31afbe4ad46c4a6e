package dataprocessing

import "time"

// ItemSummary holds descriptive statistics of one item at one center.
// Std is the sample standard deviation and is 0 when Count < 2.
type ItemSummary struct {
	Center string  `json:"center"`
	Item   string  `json:"item"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// CenterVolume is one cell of the long-format center comparison.
type CenterVolume struct {
	Center string  `json:"center"`
	Item   string  `json:"item"`
	Volume float64 `json:"volume"`
}

// Trend is a date by center pivot of one item. Values[i] lines up with
// Centers; a nil entry means the center has no row on that date.
type Trend struct {
	Item    string     `json:"item"`
	Centers []string   `json:"centers"`
	Rows    []TrendRow `json:"rows"`
}

// TrendRow is one date of a Trend.
type TrendRow struct {
	Date   time.Time  `json:"date"`
	Values []*float64 `json:"values"`
}

// ItemShare is an item's mean daily volume and its share of the sum of all
// item means.
type ItemShare struct {
	Item       string  `json:"item"`
	MeanVolume float64 `json:"mean_volume"`
	Share      float64 `json:"share"`
}

// WeekdayProfile is the mean volume of an item per weekday, Monday first,
// together with the mean of the per-weekday sample standard deviations.
type WeekdayProfile struct {
	Item   string     `json:"item"`
	Means  [7]float64 `json:"means"`
	StdDev float64    `json:"std_dev"`
}

// FestivalComparison contrasts rows falling on or up to two days after a
// holiday with all other rows.
type FestivalComparison struct {
	Item         string  `json:"item"`
	FestivalMean float64 `json:"festival_mean"`
	NormalMean   float64 `json:"normal_mean"`
	FestivalRows int     `json:"festival_rows"`
	NormalRows   int     `json:"normal_rows"`
}

// CenterTotal is the total volume of all items at a center.
type CenterTotal struct {
	Center string  `json:"center"`
	Total  float64 `json:"total"`
}

// MonthlyTotal is the total volume of all centers and items in a month,
// formatted as YYYY-MM.
type MonthlyTotal struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// Insights bundles the whole-dataset views.
type Insights struct {
	ItemShares []ItemShare          `json:"item_shares"`
	Weekdays   []WeekdayProfile     `json:"weekdays"`
	Festival   []FestivalComparison `json:"festival"`
	TopCenters []CenterTotal        `json:"top_centers"`
	Monthly    []MonthlyTotal       `json:"monthly"`
}
