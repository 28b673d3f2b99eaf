package sampleupload

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/okian/thermo/pkg/logger"
)

// tolerance absorbs summation order differences.
const tolerance = 1e-6

// verifyResults compares served records with the expected averages.
func verifyResults(ctx context.Context, expected map[key]float64, records []record, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results", logger.Int("expected", len(expected)), logger.Int("found", len(records)))

	stats.RecordsFound = len(records)
	seen := make(map[key]int, len(records))
	var problems []string

	for _, r := range records {
		k := key{City: r.City, Year: r.Year}
		seen[k]++
		want, ok := expected[k]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("unexpected record %s/%d", r.City, r.Year))
		case math.Abs(want-r.AvgTemperature) > tolerance:
			problems = append(problems, fmt.Sprintf("%s/%d: got %.6f, want %.6f", r.City, r.Year, r.AvgTemperature, want))
		}
	}
	for k := range expected {
		switch seen[k] {
		case 0:
			problems = append(problems, fmt.Sprintf("missing record %s/%d", k.City, k.Year))
		case 1:
		default:
			problems = append(problems, fmt.Sprintf("%s/%d stored %d times", k.City, k.Year, seen[k]))
		}
	}

	stats.RecordsMismatch = len(problems)
	if len(problems) == 0 {
		logger.Get().Info(ctx, "all records verified")
		return nil
	}
	sort.Strings(problems)
	for i, p := range problems {
		if i == maxReportedProblems {
			logger.Get().Warn(ctx, "more problems omitted", logger.Int("omitted", len(problems)-i))
			break
		}
		logger.Get().Warn(ctx, "verification problem", logger.String("problem", p))
	}
	return fmt.Errorf("%d of %d records did not verify", len(problems), len(expected))
}

const maxReportedProblems = 20
