package etl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/okian/thermo/pkg/logger"
	"github.com/okian/thermo/pkg/metrics"
)

const defaultClaimTTL = 30 * time.Minute

// Enqueuer submits tasks to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, args ...string) (string, error)
}

// Watcher enqueues one ETL task per CSV file found in the inbox. It is the
// fallback path for files that arrived without an upload, or whose upload
// could not be enqueued.
type Watcher struct {
	inbox    *Inbox
	queue    Enqueuer
	claimTTL time.Duration
	logger   logger.Logger
}

// NewWatcher creates a watcher over inbox.
func NewWatcher(inbox *Inbox, q Enqueuer, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		inbox:    inbox,
		queue:    q,
		claimTTL: defaultClaimTTL,
		logger:   logger.Get().Named("watcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Scan claims every unclaimed CSV file and enqueues a task for it, then
// re-enqueues claims older than the claim TTL. Files that cannot be enqueued
// are released and skipped. It returns the number of tasks enqueued.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	files, err := w.inbox.Pending()
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, f := range files {
		path, err := w.inbox.Claim(f.Name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			metrics.RecordScanSkip("claim_failed")
			w.logger.Warn(ctx, "could not claim file", logger.String("file", f.Name), logger.Error(err))
			continue
		}
		if !w.enqueue(ctx, path) {
			if err := w.inbox.Release(path); err != nil {
				w.logger.Error(ctx, "could not release file", logger.Error(err))
			}
			continue
		}
		enqueued++
	}

	if w.claimTTL > 0 {
		stale, err := w.inbox.Stale(w.claimTTL)
		if err != nil {
			w.logger.Warn(ctx, "could not list claimed files", logger.Error(err))
		}
		for _, path := range stale {
			w.logger.Info(ctx, "re-enqueueing abandoned claim", logger.String("path", path))
			if w.enqueue(ctx, path) {
				enqueued++
			}
		}
	}

	metrics.RecordScan(enqueued)
	if enqueued > 0 {
		w.logger.Info(ctx, "scan enqueued files", logger.Int("count", enqueued))
	}
	return enqueued, nil
}

func (w *Watcher) enqueue(ctx context.Context, path string) bool {
	id, err := w.queue.Enqueue(ctx, TaskProcessFile, path)
	if err != nil {
		metrics.RecordScanSkip("enqueue_failed")
		w.logger.Warn(ctx, "could not enqueue file", logger.String("path", path), logger.Error(err))
		return false
	}
	w.logger.Debug(ctx, "file enqueued", logger.String("path", path), logger.String("task_id", id))
	return true
}

// ScanSummary formats a scan result as a task result string.
func ScanSummary(n int) string {
	return fmt.Sprintf("enqueued %d files", n)
}
