package etl

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/okian/thermo/internal/domain/model"
)

const utf8BOM = "\ufeff"

// null-like cell values treated as a missing temperature.
var nullValues = map[string]struct{}{ //nolint:gochecknoglobals // lookup table
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

// ReadFile parses a temperature CSV. The table keeps the header as written so
// the aggregator can report missing columns; rows carry empty values for
// columns the header lacks.
func ReadFile(path string) (model.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.RawTable{}, fmt.Errorf("%w: %v", ErrIngest, err)
	}
	defer f.Close()

	table, err := Read(f)
	if err != nil {
		return model.RawTable{}, fmt.Errorf("%w: %s", err, path)
	}
	return table, nil
}

// Read parses CSV content from r.
func Read(r io.Reader) (model.RawTable, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return model.RawTable{}, fmt.Errorf("%w: empty file", ErrIngest)
	}
	if err != nil {
		return model.RawTable{}, fmt.Errorf("%w: %v", ErrIngest, err)
	}
	columns := make([]string, len(header))
	copy(columns, header)
	columns[0] = strings.TrimPrefix(columns[0], utf8BOM)

	iDate := columnIndex(columns, model.ColumnDate)
	iCity := columnIndex(columns, model.ColumnCity)
	iTemp := columnIndex(columns, model.ColumnTemperature)

	table := model.RawTable{Columns: columns}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.RawTable{}, fmt.Errorf("%w: %v", ErrIngest, err)
		}
		table.Rows = append(table.Rows, model.RawTemperatureRow{
			Date:               cell(rec, iDate),
			City:               cell(rec, iCity),
			AverageTemperature: ParseTemperature(cell(rec, iTemp)),
		})
	}
	return table, nil
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return i
		}
	}
	return -1
}

// cell returns rec[i], or "" when the column is absent or the row is short.
func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// ParseTemperature returns nil for empty, null-like, non-numeric or
// non-finite values.
func ParseTemperature(s string) *float64 {
	s = strings.TrimSpace(s)
	if _, ok := nullValues[strings.ToLower(s)]; ok {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
