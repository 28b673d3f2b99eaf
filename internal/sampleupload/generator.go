package sampleupload

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/okian/thermo/pkg/logger"
)

// Base city names; each run suffixes them with a run tag.
var baseCities = []string{ //nolint:gochecknoglobals // fixed sample data
	"Lisbon", "Oslo", "Nairobi", "Lima", "Osaka", "Perth", "Quito", "Riga",
	"Tunis", "Hanoi", "Dakar", "Sofia", "Bergen", "Cusco", "Male", "Porto",
}

// Constants for generated values.
const (
	baseTemperature    = -5.0
	temperatureRange   = 35.0
	nullEvery          = 17 // every nth row has an empty temperature
	preCutoffYear      = 1850
	malformedDateEvery = 29 // every nth row has an unparseable date
)

// expectation accumulates the values a (city, year) should average to.
type expectation struct {
	sum   float64
	count int
}

// Generator builds CSV files whose yearly averages are known in advance.
type Generator struct {
	tag      string
	rng      *rand.Rand
	fromYear int
	toYear   int
	expected map[key]*expectation
	rows     int
}

// NewGenerator creates a generator. Cities carry tag so a run's records can
// be told apart from other data in the store.
func NewGenerator(tag string, seed uint64, fromYear, toYear int) *Generator {
	return &Generator{
		tag:      tag,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		fromYear: fromYear,
		toYear:   toYear,
		expected: make(map[key]*expectation),
	}
}

// City returns the tagged name of base city i. Names are unique per index,
// so no (city, year) spans two files.
func (g *Generator) City(i int) string {
	return fmt.Sprintf("%s-%d-%s", baseCities[i%len(baseCities)], i, g.tag)
}

// File generates one CSV with monthly rows for cities [first, first+n).
// Rows the service must drop (empty temperatures, years before the cutoff,
// malformed dates) are mixed in and left out of the expectations.
func (g *Generator) File(index, first, n int) (File, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"dt", "AverageTemperature", "AverageTemperatureUncertainty", "City", "Country"}); err != nil {
		return File{}, err
	}

	row := 0
	for c := first; c < first+n; c++ {
		city := g.City(c)
		for year := g.fromYear; year <= g.toYear; year++ {
			for month := 1; month <= 12; month++ {
				row++
				date := fmt.Sprintf("%04d-%02d-01", year, month)
				temp := baseTemperature + g.rng.Float64()*temperatureRange
				tempStr := strconv.FormatFloat(temp, 'f', 3, 64)
				counted := true

				switch {
				case row%nullEvery == 0:
					tempStr = ""
					counted = false
				case row%malformedDateEvery == 0:
					date = "not-a-date"
					counted = false
				}
				if counted {
					// The service reads the rounded text, not temp.
					parsed, _ := strconv.ParseFloat(tempStr, 64)
					g.expect(city, year, parsed)
				}
				if err := w.Write([]string{date, tempStr, "0.25", city, "Sampleland"}); err != nil {
					return File{}, err
				}
			}
		}
		// One reading before the cutoff, which must be ignored.
		if err := w.Write([]string{fmt.Sprintf("%04d-06-01", preCutoffYear), "12.5", "1.0", city, "Sampleland"}); err != nil {
			return File{}, err
		}
		row++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return File{}, err
	}
	g.rows += row
	return File{Name: fmt.Sprintf("sample_%s_%03d.csv", g.tag, index), Data: buf.Bytes()}, nil
}

func (g *Generator) expect(city string, year int, v float64) {
	k := key{City: city, Year: year}
	e, ok := g.expected[k]
	if !ok {
		e = &expectation{}
		g.expected[k] = e
	}
	e.sum += v
	e.count++
}

// Expected returns the yearly averages the generated files should produce.
func (g *Generator) Expected() map[key]float64 {
	out := make(map[key]float64, len(g.expected))
	for k, e := range g.expected {
		out[k] = e.sum / float64(e.count)
	}
	return out
}

// Rows returns the number of data rows generated so far.
func (g *Generator) Rows() int { return g.rows }

// generateFiles creates config.Files files of config.Cities cities each.
func generateFiles(ctx context.Context, config *Config, g *Generator, stats *Stats) ([]File, error) {
	logger.Get().Info(ctx, "generating sample files",
		logger.Int("files", config.Files),
		logger.Int("citiesPerFile", config.Cities),
		logger.Int("fromYear", config.FromYear),
		logger.Int("toYear", config.ToYear))

	files := make([]File, 0, config.Files)
	for i := 0; i < config.Files; i++ {
		f, err := g.File(i, i*config.Cities, config.Cities)
		if err != nil {
			return nil, fmt.Errorf("generate file %d: %w", i, err)
		}
		files = append(files, f)
	}
	stats.FilesGenerated = len(files)
	stats.RowsGenerated = g.Rows()
	stats.RecordsExpected = len(g.expected)
	return files, nil
}
