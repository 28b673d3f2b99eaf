package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/thermo/internal/adapters/mq/queue"
	"github.com/okian/thermo/internal/domain/dedupe"
	"github.com/okian/thermo/pkg/logger"
	"github.com/okian/thermo/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Result is the terminal outcome of one task: a success summary or an error.
type Result struct {
	Value string
	Err   error
}

// Handler runs one kind of task. Handlers report failure through Result and
// must not rely on panics; a panic is still recovered into a failure.
type Handler interface {
	Handle(ctx context.Context, t queue.Task) Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t queue.Task) Result

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, t queue.Task) Result { return f(ctx, t) }

// Handlers maps task names to their handler.
type Handlers map[string]Handler

// Queue is the part of the task queue a worker consumes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
	Ack(ctx context.Context, t queue.Task) error
	SetStatus(ctx context.Context, s queue.Status) error
	Status(ctx context.Context, id string) (queue.Status, error)
	Len(ctx context.Context) int
}

// Worker processes tasks until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the task in hand, if any.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	handlers Handlers
	deduper  dedupe.Deduper
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, handlers Handlers, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handlers: handlers,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.deduper == nil {
		w.deduper = dedupe.NewInMemoryDeduper()
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			w.process(ctx, t)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process takes one delivery through STARTED to a terminal state. A task
// in flight is not cancelled when the worker stops.
func (w *InMemoryWorker) process(ctx context.Context, t queue.Task) {
	ctx = context.WithoutCancel(ctx)
	log := w.logger.With(logger.String("task_id", t.ID), logger.String("task", t.Name))

	if w.duplicate(ctx, t) {
		metrics.RecordTaskDuplicate()
		log.Info(ctx, "skipping duplicate delivery")
		w.ack(ctx, log, t)
		return
	}

	start := time.Now()
	metrics.RecordTaskStarted(t.Name)
	metrics.WorkerBusy(1)
	defer metrics.WorkerBusy(-1)

	if err := w.queue.SetStatus(ctx, queue.Status{TaskID: t.ID, Name: t.Name, State: queue.StateStarted}); err != nil {
		metrics.RecordErrorByComponent("worker", "status_write")
		log.Error(ctx, "failed to record task start", logger.Error(err))
	}

	res := w.run(ctx, t)

	final := queue.Status{TaskID: t.ID, Name: t.Name, State: queue.StateSuccess, Result: res.Value}
	if res.Err != nil {
		final = queue.Status{TaskID: t.ID, Name: t.Name, State: queue.StateFailure, Error: res.Err.Error()}
		log.Warn(ctx, "task failed", logger.Error(res.Err))
	} else {
		log.Info(ctx, "task succeeded", logger.String("result", res.Value))
	}
	if err := w.queue.SetStatus(ctx, final); err != nil {
		metrics.RecordErrorByComponent("worker", "status_write")
		log.Error(ctx, "failed to record task outcome", logger.Error(err))
	}
	w.ack(ctx, log, t)
	metrics.RecordTaskCompleted(t.Name, string(final.State), time.Since(start))
}

// duplicate reports whether t was already taken by this process or has
// already finished elsewhere.
func (w *InMemoryWorker) duplicate(ctx context.Context, t queue.Task) bool {
	if w.deduper.SeenAndRecord(ctx, t.ID) {
		return true
	}
	st, err := w.queue.Status(ctx, t.ID)
	if err == nil && st.State.Terminal() {
		return true
	}
	if err != nil && !errors.Is(err, queue.ErrNotFound) {
		w.logger.Warn(ctx, "could not read task status", logger.String("task_id", t.ID), logger.Error(err))
	}
	return false
}

func (w *InMemoryWorker) run(ctx context.Context, t queue.Task) (res Result) {
	h, ok := w.handlers[t.Name]
	if !ok {
		return Result{Err: fmt.Errorf("%w: %s", ErrUnknownTask, t.Name)}
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			res = Result{Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	return h.Handle(ctx, t)
}

func (w *InMemoryWorker) ack(ctx context.Context, log logger.Logger, t queue.Task) {
	if err := w.queue.Ack(ctx, t); err != nil {
		metrics.RecordErrorByComponent("worker", "ack")
		log.Error(ctx, "failed to ack task", logger.Error(err))
	}
}

// Pool manages multiple workers sharing one deduper.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a new worker pool. Options are applied to every worker.
func NewPool(workerCount int, q Queue, handlers Handlers, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	shared := append([]Option{WithDeduper(dedupe.NewInMemoryDeduper())}, opts...)
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, handlers,
			append(shared, WithName("worker-"+strconv.Itoa(i)))...,
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

// startMetricsUpdater refreshes the queue length gauge until the pool stops.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.queue.Len(ctx)
		}
	}
}

// Shutdown stops every worker and waits for tasks in hand to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	close(p.shutdown)
	for _, worker := range p.workers {
		close(worker.shutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
