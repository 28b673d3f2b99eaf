// Package queue defines the contract for enqueuing tasks, consuming them and
// tracking their status.
//
// Two backends are provided: a bounded in-memory queue for single-process
// deployments and a Redis queue shared by API and worker processes.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/thermo/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1000
	defaultStatusTTL     = 24 * time.Hour
	sweepInterval        = time.Minute
)

// Queue provides at-least-once task delivery plus a status record per task.
type Queue interface {
	// Enqueue records the task as PENDING, publishes it and returns its id.
	Enqueue(ctx context.Context, name string, args ...string) (string, error)

	// Dequeue returns a channel of tasks. It is closed when the queue is
	// closed or ctx is done.
	Dequeue(ctx context.Context) <-chan Task

	// Ack marks a delivered task as handled so it is not redelivered.
	Ack(ctx context.Context, t Task) error

	// SetStatus stores a status snapshot for a task.
	SetStatus(ctx context.Context, s Status) error

	// Status returns the latest snapshot, or ErrNotFound for unknown or
	// expired ids. It never changes task state.
	Status(ctx context.Context, id string) (Status, error)

	// Len returns the number of tasks waiting to be delivered.
	Len(ctx context.Context) int

	// Close stops delivery. Further Enqueue calls fail with ErrClosed.
	Close() error
}

type statusEntry struct {
	status    Status
	expiresAt time.Time
}

// InMemoryQueue implements Queue using a buffered channel and a status map.
type InMemoryQueue struct {
	tasks     chan Task
	capacity  int
	statusTTL time.Duration
	now       func() time.Time

	mu        sync.RWMutex
	closed    bool
	statuses  map[string]statusEntry
	lastSweep time.Time
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:  defaultQueueCapacity,
		statusTTL: defaultStatusTTL,
		now:       time.Now,
		statuses:  make(map[string]statusEntry),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueLength(0)
	return q
}

// Enqueue adds a task to the queue. It fails with ErrFull instead of blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, name string, args ...string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.RecordTaskEnqueueError("closed")
		return "", ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordTaskEnqueueError("context_cancelled")
		return "", err
	}

	now := q.now()
	t := Task{ID: uuid.NewString(), Name: name, Args: args, EnqueuedAt: now}
	select {
	case q.tasks <- t:
	default:
		metrics.RecordTaskEnqueueError("queue_full")
		return "", ErrFull
	}

	q.sweepLocked(now)
	q.statuses[t.ID] = statusEntry{
		status:    Status{TaskID: t.ID, Name: name, State: StatePending, UpdatedAt: now},
		expiresAt: now.Add(q.statusTTL),
	}
	metrics.RecordTaskEnqueued(name)
	metrics.UpdateQueueLength(len(q.tasks))
	return t.ID, nil
}

// Dequeue returns a channel that will receive tasks as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for {
			select {
			case t, ok := <-q.tasks:
				if !ok {
					return
				}
				select {
				case out <- t:
					metrics.UpdateQueueLength(len(q.tasks))
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Ack is a no-op: a task leaves the in-memory queue once it is received.
func (q *InMemoryQueue) Ack(context.Context, Task) error { return nil }

// SetStatus stores s and refreshes its retention.
func (q *InMemoryQueue) SetStatus(_ context.Context, s Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	q.statuses[s.TaskID] = statusEntry{status: s, expiresAt: now.Add(q.statusTTL)}
	return nil
}

// Status returns the latest snapshot of a task.
func (q *InMemoryQueue) Status(_ context.Context, id string) (Status, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	e, ok := q.statuses[id]
	if !ok || !q.now().Before(e.expiresAt) {
		return Status{}, ErrNotFound
	}
	return e.status, nil
}

// sweepLocked drops expired statuses at most once per sweepInterval.
// Must be called with q.mu held.
func (q *InMemoryQueue) sweepLocked(now time.Time) {
	if now.Sub(q.lastSweep) < sweepInterval {
		return
	}
	q.lastSweep = now
	for id, e := range q.statuses {
		if !now.Before(e.expiresAt) {
			delete(q.statuses, id)
		}
	}
}

// Len returns the current number of queued tasks.
func (q *InMemoryQueue) Len(context.Context) int {
	n := len(q.tasks)
	metrics.UpdateQueueLength(n)
	return n
}

// Close gracefully shuts down the queue. Tasks already buffered are still
// delivered to active consumers.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
