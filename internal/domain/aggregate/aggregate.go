// Package aggregate turns raw temperature readings into yearly per-city means.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/okian/thermo/internal/domain/model"
)

// Date layouts accepted for the dt column, tried in order.
var defaultLayouts = []string{ //nolint:gochecknoglobals // immutable default
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
}

// Aggregator computes aggregate records from a raw table. Implementations
// hold no state between calls.
type Aggregator interface {
	Aggregate(table model.RawTable) ([]model.AggregateTemperature, error)
}

// YearlyAggregator groups readings by trimmed city and calendar year.
type YearlyAggregator struct {
	minYear int
	layouts []string
}

// NewYearlyAggregator creates an aggregator with the default year bound and
// date layouts.
func NewYearlyAggregator(opts ...Option) *YearlyAggregator {
	a := &YearlyAggregator{
		minYear: model.MinYear,
		layouts: defaultLayouts,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type groupKey struct {
	city string
	year int
}

// Aggregate validates the header, filters unusable rows and returns one
// record per (city, year) sorted by city then year. The IDs of the returned
// records are zero; the store assigns them.
func (a *YearlyAggregator) Aggregate(table model.RawTable) ([]model.AggregateTemperature, error) {
	if missing := MissingColumns(table.Columns); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", ErrValidation, strings.Join(missing, ", "))
	}

	groups := make(map[groupKey][]float64)
	for _, row := range table.Rows {
		if row.AverageTemperature == nil {
			continue
		}
		year, ok := a.year(row.Date)
		if !ok || year <= a.minYear {
			continue
		}
		city := strings.TrimSpace(row.City)
		if city == "" {
			continue
		}
		k := groupKey{city: city, year: year}
		groups[k] = append(groups[k], *row.AverageTemperature)
	}

	out := make([]model.AggregateTemperature, 0, len(groups))
	for k, values := range groups {
		out = append(out, model.AggregateTemperature{
			City:           k.city,
			Year:           k.year,
			AvgTemperature: mean(values),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].City != out[j].City {
			return out[i].City < out[j].City
		}
		return out[i].Year < out[j].Year
	})
	return out, nil
}

func (a *YearlyAggregator) year(date string) (int, bool) {
	date = strings.TrimSpace(date)
	if date == "" {
		return 0, false
	}
	for _, layout := range a.layouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Year(), true
		}
	}
	return 0, false
}

// mean sums in ascending order so the result does not depend on row order.
// When the plain sum overflows, each value is scaled down first; the mean of
// finite values is always finite.
func mean(values []float64) float64 {
	sort.Float64s(values)
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	if !math.IsInf(sum, 0) {
		return sum / n
	}
	sum = 0
	for _, v := range values {
		sum += v / n
	}
	return sum
}

// MissingColumns reports which required columns are absent from header.
// Matching ignores case and surrounding whitespace.
func MissingColumns(header []string) []string {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	var missing []string
	for _, required := range []string{model.ColumnDate, model.ColumnCity, model.ColumnTemperature} {
		if _, ok := present[strings.ToLower(required)]; !ok {
			missing = append(missing, required)
		}
	}
	return missing
}
