// Package service wires the ETL pipeline together and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/okian/thermo/internal/adapters/mq/queue"
	"github.com/okian/thermo/internal/adapters/mq/scheduler"
	"github.com/okian/thermo/internal/adapters/mq/worker"
	"github.com/okian/thermo/internal/adapters/repository"
	"github.com/okian/thermo/internal/domain/model"
	"github.com/okian/thermo/internal/etl"
	"github.com/okian/thermo/pkg/logger"
	"github.com/okian/thermo/pkg/metrics"
)

// PageSize is the number of records per /temperatures page.
const PageSize = 20

const (
	scanJob        = "scan-directory"
	startupScanJob = "startup-scan"
)

// recoverer is implemented by queues that can requeue deliveries left
// unacknowledged by a previous run.
type recoverer interface {
	Recover(ctx context.Context) (int, error)
}

// fileHandler adapts etl.Processor to worker.Handler.
type fileHandler struct {
	processor *etl.Processor
}

func (h *fileHandler) Handle(ctx context.Context, t queue.Task) worker.Result {
	if len(t.Args) == 0 || t.Args[0] == "" {
		return worker.Result{Err: fmt.Errorf("%w: task has no file path", etl.ErrIngest)}
	}
	out := h.processor.Run(ctx, t.Args[0])
	return worker.Result{Value: out.Summary, Err: out.Err}
}

// scanHandler adapts etl.Watcher to worker.Handler.
type scanHandler struct {
	watcher *etl.Watcher
}

func (h *scanHandler) Handle(ctx context.Context, _ queue.Task) worker.Result {
	n, err := h.watcher.Scan(ctx)
	if err != nil {
		return worker.Result{Err: err}
	}
	return worker.Result{Value: etl.ScanSummary(n)}
}

// Service implements the API dependencies for the temperature ETL system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	queue     queue.Queue
	inbox     *etl.Inbox
	gateway   *etl.Gateway
	watcher   *etl.Watcher
	pool      *worker.Pool
	scheduler *scheduler.Scheduler

	// Configuration
	dataDir          string
	workerCount      int
	runWorkers       bool
	schedulerEnabled bool
	scanInterval     time.Duration
	startupScanDelay time.Duration
	claimTTL         time.Duration
	maxUploadBytes   int64

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service over an open store and queue. The service does not
// own either; the caller closes them after Stop.
func New(store repository.Store, q queue.Queue, opts ...Option) *Service {
	s := &Service{
		store:            store,
		queue:            q,
		dataDir:          "data",
		workerCount:      2,
		runWorkers:       true,
		schedulerEnabled: true,
		scanInterval:     60 * time.Second,
		startupScanDelay: 5 * time.Second,
		claimTTL:         30 * time.Minute,
		maxUploadBytes:   100 << 20,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start creates the watched directory, then starts workers and the scheduler
// when this process runs them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting etl service...")

	inbox, err := etl.NewInbox(s.dataDir)
	if err != nil {
		return err
	}
	s.inbox = inbox
	s.gateway = etl.NewGateway(inbox, s.queue, etl.WithMaxUploadBytes(s.maxUploadBytes))
	s.watcher = etl.NewWatcher(inbox, s.queue, etl.WithClaimTTL(s.claimTTL))

	if s.runWorkers {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.cancel = cancel

		if r, ok := s.queue.(recoverer); ok {
			n, err := r.Recover(runCtx)
			if err != nil {
				s.logger.Warn(ctx, "could not recover unacknowledged tasks", logger.Error(err))
			} else if n > 0 {
				s.logger.Info(ctx, "recovered unacknowledged tasks", logger.Int("count", n))
			}
		}

		handlers := worker.Handlers{
			etl.TaskProcessFile:   &fileHandler{processor: etl.NewProcessor(s.store)},
			etl.TaskScanDirectory: &scanHandler{watcher: s.watcher},
		}
		s.pool = worker.NewPool(s.workerCount, s.queue, handlers)
		s.pool.Start(runCtx)

		if s.schedulerEnabled {
			if err := s.startScheduler(); err != nil {
				cancel()
				_ = s.pool.Shutdown(ctx)
				return err
			}
		}
	}

	s.started = true
	s.logger.Info(ctx, "etl service started",
		logger.String("dataDir", inbox.Dir()),
		logger.Bool("workers", s.runWorkers),
		logger.Int("workerCount", s.workerCount),
		logger.Bool("scheduler", s.schedulerEnabled),
	)

	return nil
}

// startScheduler registers the periodic scan and the one-off startup scan.
// Both only enqueue a scan task; the scan itself runs on a worker.
func (s *Service) startScheduler() error {
	s.scheduler = scheduler.New()
	if err := s.scheduler.Every(scanJob, s.scanInterval, s.enqueueScan); err != nil {
		return err
	}
	if err := s.scheduler.After(startupScanJob, s.startupScanDelay, s.enqueueScan); err != nil {
		return err
	}
	s.scheduler.Start()
	return nil
}

func (s *Service) enqueueScan(ctx context.Context) {
	id, err := s.queue.Enqueue(ctx, etl.TaskScanDirectory)
	if err != nil {
		s.logger.Warn(ctx, "could not enqueue directory scan", logger.Error(err))
		return
	}
	s.logger.Debug(ctx, "directory scan enqueued", logger.String("task_id", id))
}

// Stop stops the scheduler, then waits for workers to finish the tasks in
// hand.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping etl service...")

	if s.scheduler != nil {
		s.scheduler.Stop()
		s.scheduler = nil
	}

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool did not stop cleanly", logger.Error(err))
		}
		s.pool = nil
	}

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	s.started = false
	s.logger.Info(ctx, "etl service stopped")
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Upload stores a CSV upload and enqueues its processing task.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if !s.running() {
		return "", ErrNotStarted
	}
	return s.gateway.Submit(ctx, filename, r)
}

// MaxUploadBytes returns the upload size limit.
func (s *Service) MaxUploadBytes() int64 { return s.maxUploadBytes }

// TaskStatus returns the status of a task, or queue.ErrNotFound.
func (s *Service) TaskStatus(ctx context.Context, id string) (queue.Status, error) {
	return s.queue.Status(ctx, id)
}

// Temperatures returns one page of aggregate records matching f.
func (s *Service) Temperatures(ctx context.Context, f model.Filter, page int) (model.Page, error) {
	return s.store.Query(ctx, f, page, PageSize)
}

// Temperature returns one aggregate record, or repository.ErrNotFound.
func (s *Service) Temperature(ctx context.Context, id int64) (model.AggregateTemperature, error) {
	return s.store.GetByID(ctx, id)
}

// PendingFiles lists CSV files waiting in the watched directory.
func (s *Service) PendingFiles(_ context.Context) ([]etl.FileInfo, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.gateway.Pending()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workers":     s.runWorkers,
		"workerCount": s.workerCount,
		"scheduler":   s.schedulerEnabled,
		"dataDir":     s.dataDir,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen

		if n, err := s.store.Count(ctx); err == nil {
			stats["totalRecords"] = n
		} else {
			metrics.RecordErrorByComponent("service", "count_records")
		}
		if files, err := s.inbox.Pending(); err == nil {
			stats["pendingFiles"] = len(files)
		}
		if s.pool != nil {
			stats["workerCount"] = s.pool.Size()
		}
	}

	return stats
}
