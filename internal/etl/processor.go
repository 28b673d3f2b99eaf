package etl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/thermo/internal/domain/aggregate"
	"github.com/okian/thermo/internal/domain/model"
	"github.com/okian/thermo/pkg/logger"
	"github.com/okian/thermo/pkg/metrics"
)

// Store persists aggregate records.
type Store interface {
	Insert(ctx context.Context, rows []model.AggregateTemperature) error
}

// Outcome is the terminal result of one ETL run: a success summary with the
// record count, or an error.
type Outcome struct {
	Summary string
	Count   int
	Err     error
}

// OK reports whether the run succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Processor runs one file through read, aggregate, store and delete. It keeps
// no state between runs and is safe for concurrent use.
type Processor struct {
	store      Store
	aggregator aggregate.Aggregator
	logger     logger.Logger
}

// NewProcessor creates a processor writing to store.
func NewProcessor(store Store, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:      store,
		aggregator: aggregate.NewYearlyAggregator(),
		logger:     logger.Get().Named("etl"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes the file at path. The file is removed afterwards whatever the
// outcome, so a failed file is not picked up again.
func (p *Processor) Run(ctx context.Context, path string) (out Outcome) {
	start := time.Now()
	log := p.logger.With(logger.String("file", filepath.Base(path)))
	defer func() {
		p.remove(ctx, log, path)
		metrics.RecordETLRun(time.Since(start))
		if out.Err != nil {
			metrics.RecordETLFailure(Kind(out.Err))
			log.Warn(ctx, "etl run failed", logger.Error(out.Err), logger.Duration("took", time.Since(start)))
			return
		}
		log.Info(ctx, "etl run finished", logger.Int("records", out.Count), logger.Duration("took", time.Since(start)))
	}()

	table, err := ReadFile(path)
	if err != nil {
		return Outcome{Err: err}
	}
	metrics.RecordRowsRead(len(table.Rows))

	rows, err := p.aggregator.Aggregate(table)
	if err != nil {
		return Outcome{Err: err}
	}

	if len(rows) > 0 {
		if err := p.store.Insert(ctx, rows); err != nil {
			return Outcome{Err: fmt.Errorf("%w: %v", ErrStorage, err)}
		}
		metrics.RecordAggregatesWritten(len(rows))
	}
	return Outcome{Summary: fmt.Sprintf("processed %d records", len(rows)), Count: len(rows)}
}

func (p *Processor) remove(ctx context.Context, log logger.Logger, path string) {
	err := os.Remove(path)
	switch {
	case err == nil:
		metrics.RecordFileDeleted()
	case errors.Is(err, fs.ErrNotExist):
	default:
		metrics.RecordErrorByComponent("etl", "remove_file")
		log.Error(ctx, "failed to remove processed file", logger.Error(err))
	}
}
