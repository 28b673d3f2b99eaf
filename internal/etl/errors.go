package etl

import (
	"errors"

	"github.com/okian/thermo/internal/domain/aggregate"
)

// Sentinel kinds for ETL errors.
var (
	// ErrValidation marks a file whose header lacks required columns.
	ErrValidation = aggregate.ErrValidation
	// ErrIngest marks a file that is missing, unreadable or not valid CSV.
	ErrIngest = errors.New("unreadable file")
	// ErrStorage marks a failed write of aggregated records.
	ErrStorage = errors.New("storage error")

	ErrNotCSV      = errors.New("only .csv files are accepted")
	ErrTooLarge    = errors.New("file exceeds upload limit")
	ErrUnavailable = errors.New("task queue unavailable")
)

// Kind returns a short label for err, used in metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrIngest):
		return "ingest"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "other"
	}
}
