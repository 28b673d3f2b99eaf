// Package model contains domain models passed between layers.
package model

// Column names required in every ingested CSV header.
const (
	ColumnDate        = "dt"
	ColumnCity        = "City"
	ColumnTemperature = "AverageTemperature"
)

// MinYear is exclusive: aggregates exist only for years after it.
const MinYear = 1900

// RawTemperatureRow is one CSV record before aggregation.
type RawTemperatureRow struct {
	Date               string   // calendar date, possibly malformed or empty
	City               string   // free text, untrimmed
	AverageTemperature *float64 // nil when empty, null-like or non-numeric
}

// RawTable is a parsed CSV file: its header plus every data row.
type RawTable struct {
	Columns []string
	Rows    []RawTemperatureRow
}

// AggregateTemperature is the persisted yearly mean for one city.
type AggregateTemperature struct {
	ID             int64   `json:"id" db:"id"`
	City           string  `json:"city" db:"city"`
	Year           int     `json:"year" db:"year"`
	AvgTemperature float64 `json:"avg_temperature" db:"avg_temperature"`
}

// Filter narrows a temperature query. Zero values mean "no filter".
type Filter struct {
	City string // case-insensitive substring
	Year int
}

// Page is one slice of a paginated temperature query.
type Page struct {
	Page       int                    `json:"page"`
	TotalPages int                    `json:"total_pages"`
	Data       []AggregateTemperature `json:"data"`
}
