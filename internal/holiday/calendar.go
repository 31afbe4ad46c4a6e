// Package holiday provides the Korean public-holiday calendar used to tag
// anomalies and build forecasting features.
package holiday

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultWindowRadius is the number of days tagged on each side of a holiday.
const DefaultWindowRadius = 2

//go:embed rules.yaml
var defaultRules []byte

type fixedRule struct {
	Month int    `yaml:"month"`
	Day   int    `yaml:"day"`
	Name  string `yaml:"name"`
}

type datedRule struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

type rulesFile struct {
	Fixed []fixedRule         `yaml:"fixed"`
	Years map[int][]datedRule `yaml:"years"`
}

type dated struct {
	date time.Time
	name string
}

// Calendar resolves holiday dates per year from a rules table.
// Resolved year sets are memoized; a Calendar is safe for concurrent use.
type Calendar struct {
	fixed []fixedRule
	years map[int][]dated

	mu     sync.Mutex
	exact  map[string]map[time.Time]string
	window map[string]map[time.Time]string
}

// New returns a calendar backed by the embedded Korean rules table.
func New() (*Calendar, error) {
	return Parse(defaultRules)
}

// Parse builds a calendar from a YAML rules table.
func Parse(data []byte) (*Calendar, error) {
	var rules rulesFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse holiday rules: %w", err)
	}

	c := &Calendar{
		fixed:  rules.Fixed,
		years:  make(map[int][]dated, len(rules.Years)),
		exact:  make(map[string]map[time.Time]string),
		window: make(map[string]map[time.Time]string),
	}

	for _, f := range rules.Fixed {
		if f.Month < 1 || f.Month > 12 || f.Day < 1 || f.Day > 31 {
			return nil, fmt.Errorf("invalid fixed holiday %q: %d-%d", f.Name, f.Month, f.Day)
		}
	}

	for year, entries := range rules.Years {
		for _, e := range entries {
			d, err := time.Parse("2006-01-02", e.Date)
			if err != nil {
				return nil, fmt.Errorf("parse holiday %q: %w", e.Name, err)
			}
			if d.Year() != year {
				return nil, fmt.Errorf("holiday %q dated %s listed under %d", e.Name, e.Date, year)
			}
			c.years[year] = append(c.years[year], dated{date: d, name: e.Name})
		}
	}

	return c, nil
}

// Day returns the UTC midnight of t's calendar date, the key used in every holiday map.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Covers reports whether the table carries the lunar and substitute holidays of year.
func (c *Calendar) Covers(year int) bool {
	_, ok := c.years[year]
	return ok
}

// MissingYears lists the years in [from, to] that the table does not cover.
// Only fixed-date holidays are known for those years.
func (c *Calendar) MissingYears(from, to int) []int {
	var missing []int
	for y := from; y <= to; y++ {
		if !c.Covers(y) {
			missing = append(missing, y)
		}
	}
	return missing
}

// Holidays returns the exact holiday dates of the given years with their names.
// Two holidays on the same date are joined with "; ".
func (c *Calendar) Holidays(years ...int) map[time.Time]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.exactLocked(years))
}

func (c *Calendar) exactLocked(years []int) map[time.Time]string {
	key := yearKey(years)
	if cached, ok := c.exact[key]; ok {
		return cached
	}
	out := c.resolve(uniqueYears(years))
	c.exact[key] = out
	return out
}

// Window expands every holiday of the given years to radius days on each side.
// Overlapping expansions collapse to one entry named after the earliest holiday.
// Holidays of the neighbouring years are included so the window crosses year
// boundaries.
func (c *Calendar) Window(radius int, years ...int) map[time.Time]string {
	if radius < 0 {
		radius = 0
	}
	key := strconv.Itoa(radius) + "|" + yearKey(years)

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.window[key]; ok {
		return copyMap(cached)
	}

	requested := make(map[int]struct{})
	var span []int
	for _, y := range uniqueYears(years) {
		requested[y] = struct{}{}
		span = append(span, y-1, y, y+1)
	}

	exact := c.resolve(uniqueYears(span))
	days := make([]time.Time, 0, len(exact))
	for d := range exact {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make(map[time.Time]string)
	for _, d := range days {
		for offset := -radius; offset <= radius; offset++ {
			day := d.AddDate(0, 0, offset)
			if _, ok := requested[day.Year()]; !ok {
				continue
			}
			if _, taken := out[day]; !taken {
				out[day] = exact[d]
			}
		}
	}

	c.window[key] = out
	return copyMap(out)
}

// Name returns the holiday name of an exact holiday date.
func (c *Calendar) Name(t time.Time) (string, bool) {
	day := Day(t)

	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.exactLocked([]int{day.Year()})[day]
	return name, ok
}

// IsHoliday reports whether t is an exact holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	_, ok := c.Name(t)
	return ok
}

// resolve must be called with c.mu held.
func (c *Calendar) resolve(years []int) map[time.Time]string {
	out := make(map[time.Time]string)
	add := func(d time.Time, name string) {
		if existing, ok := out[d]; ok {
			if !strings.Contains(existing, name) {
				out[d] = existing + "; " + name
			}
			return
		}
		out[d] = name
	}

	for _, y := range years {
		for _, f := range c.fixed {
			d := time.Date(y, time.Month(f.Month), f.Day, 0, 0, 0, 0, time.UTC)
			if d.Month() != time.Month(f.Month) {
				continue
			}
			add(d, f.Name)
		}
		for _, e := range c.years[y] {
			add(e.date, e.name)
		}
	}
	return out
}

func uniqueYears(years []int) []int {
	seen := make(map[int]struct{}, len(years))
	out := make([]int, 0, len(years))
	for _, y := range years {
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

func yearKey(years []int) string {
	parts := make([]string, 0, len(years))
	for _, y := range uniqueYears(years) {
		parts = append(parts, strconv.Itoa(y))
	}
	return strings.Join(parts, ",")
}

func copyMap(in map[time.Time]string) map[time.Time]string {
	out := make(map[time.Time]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Years returns the distinct years spanned by the given dates, ascending.
func Years(dates ...time.Time) []int {
	years := make([]int, 0, 2)
	for _, d := range dates {
		years = append(years, d.Year())
	}
	return uniqueYears(years)
}
