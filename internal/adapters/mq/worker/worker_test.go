package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	queue "github.com/okian/thermo/internal/adapters/mq/queue"
	worker "github.com/okian/thermo/internal/adapters/mq/worker"
	logging "github.com/okian/thermo/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init(logging.WithOutput(io.Discard))
}

// recordingQueue wraps the in-memory queue and keeps every status write.
type recordingQueue struct {
	*queue.InMemoryQueue
	mu      sync.Mutex
	history map[string][]queue.State
	acks    atomic.Int64
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{
		InMemoryQueue: queue.NewInMemoryQueue(queue.WithCapacity(16)),
		history:       make(map[string][]queue.State),
	}
}

func (q *recordingQueue) SetStatus(ctx context.Context, s queue.Status) error {
	q.mu.Lock()
	q.history[s.TaskID] = append(q.history[s.TaskID], s.State)
	q.mu.Unlock()
	return q.InMemoryQueue.SetStatus(ctx, s)
}

func (q *recordingQueue) Ack(ctx context.Context, t queue.Task) error {
	q.acks.Add(1)
	return q.InMemoryQueue.Ack(ctx, t)
}

func (q *recordingQueue) states(id string) []queue.State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.State(nil), q.history[id]...)
}

func waitTerminal(q queue.Queue, id string) queue.Status {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		st, err := q.Status(context.Background(), id)
		if err == nil && st.State.Terminal() {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	st, _ := q.Status(context.Background(), id)
	return st
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool with registered handlers", t, func() {
		q := newRecordingQueue()
		var echoed atomic.Int64
		handlers := worker.Handlers{
			"echo": worker.HandlerFunc(func(_ context.Context, task queue.Task) worker.Result {
				echoed.Add(1)
				return worker.Result{Value: "echo " + task.Args[0]}
			}),
			"fail": worker.HandlerFunc(func(context.Context, queue.Task) worker.Result {
				return worker.Result{Err: errors.New("unreadable file")}
			}),
			"panic": worker.HandlerFunc(func(context.Context, queue.Task) worker.Result {
				panic("boom")
			}),
		}
		pool := worker.NewPool(2, q, handlers)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)
		defer func() { _ = pool.Shutdown(context.Background()) }()

		convey.So(pool.Size(), convey.ShouldEqual, 2)

		convey.Convey("When a task succeeds", func() {
			id, err := q.Enqueue(ctx, "echo", "a.csv")
			convey.So(err, convey.ShouldBeNil)
			st := waitTerminal(q, id)

			convey.Convey("Then it moves through STARTED to SUCCESS with its result", func() {
				convey.So(st.State, convey.ShouldEqual, queue.StateSuccess)
				convey.So(st.Result, convey.ShouldEqual, "echo a.csv")
				convey.So(st.Error, convey.ShouldBeEmpty)
				convey.So(q.states(id), convey.ShouldResemble, []queue.State{queue.StateStarted, queue.StateSuccess})
			})
		})

		convey.Convey("When a handler reports an error", func() {
			id, _ := q.Enqueue(ctx, "fail")
			st := waitTerminal(q, id)

			convey.Convey("Then the task fails with the error text", func() {
				convey.So(st.State, convey.ShouldEqual, queue.StateFailure)
				convey.So(st.Error, convey.ShouldEqual, "unreadable file")
				convey.So(st.Result, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When a handler panics", func() {
			id, _ := q.Enqueue(ctx, "panic")
			st := waitTerminal(q, id)

			convey.Convey("Then the panic is recorded as a failure and the worker survives", func() {
				convey.So(st.State, convey.ShouldEqual, queue.StateFailure)
				convey.So(st.Error, convey.ShouldContainSubstring, "boom")

				next, _ := q.Enqueue(ctx, "echo", "b.csv")
				convey.So(waitTerminal(q, next).State, convey.ShouldEqual, queue.StateSuccess)
			})
		})

		convey.Convey("When no handler matches the task name", func() {
			id, _ := q.Enqueue(ctx, "etl.unknown")
			st := waitTerminal(q, id)

			convey.Convey("Then the task fails", func() {
				convey.So(st.State, convey.ShouldEqual, queue.StateFailure)
				convey.So(st.Error, convey.ShouldContainSubstring, "no handler registered")
			})
		})
	})
}

// replayQueue delivers the same task twice.
type replayQueue struct {
	*recordingQueue
	task queue.Task
}

func (q *replayQueue) Dequeue(context.Context) <-chan queue.Task {
	ch := make(chan queue.Task, 2)
	ch <- q.task
	ch <- q.task
	close(ch)
	return ch
}

func TestWorkerDuplicateDelivery(t *testing.T) {
	convey.Convey("Given a queue that redelivers a task", t, func() {
		base := newRecordingQueue()
		id, err := base.Enqueue(context.Background(), "count")
		convey.So(err, convey.ShouldBeNil)
		task := <-base.InMemoryQueue.Dequeue(context.Background())
		q := &replayQueue{recordingQueue: base, task: task}

		var runs atomic.Int64
		w := worker.NewInMemoryWorker(q, worker.Handlers{
			"count": worker.HandlerFunc(func(context.Context, queue.Task) worker.Result {
				runs.Add(1)
				return worker.Result{Value: "ok"}
			}),
		})

		convey.Convey("When the worker drains both deliveries", func() {
			w.Run(context.Background())

			convey.Convey("Then the handler runs once and both deliveries are acked", func() {
				convey.So(runs.Load(), convey.ShouldEqual, 1)
				convey.So(base.acks.Load(), convey.ShouldEqual, 2)
				st, err := q.Status(context.Background(), id)
				convey.So(err, convey.ShouldBeNil)
				convey.So(st.State, convey.ShouldEqual, queue.StateSuccess)
			})
		})
	})

	convey.Convey("Given a task that already finished in another process", t, func() {
		base := newRecordingQueue()
		id, _ := base.Enqueue(context.Background(), "count")
		task := <-base.InMemoryQueue.Dequeue(context.Background())
		_ = base.InMemoryQueue.SetStatus(context.Background(), queue.Status{TaskID: id, Name: "count", State: queue.StateSuccess, Result: "done"})

		var runs atomic.Int64
		w := worker.NewInMemoryWorker(&replayQueue{recordingQueue: base, task: task}, worker.Handlers{
			"count": worker.HandlerFunc(func(context.Context, queue.Task) worker.Result {
				runs.Add(1)
				return worker.Result{}
			}),
		})
		w.Run(context.Background())

		convey.Convey("Then it is not run again", func() {
			convey.So(runs.Load(), convey.ShouldEqual, 0)
			convey.So(base.states(id), convey.ShouldBeEmpty)
		})
	})
}

func TestWorkerShutdown(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		q := newRecordingQueue()
		w := worker.NewInMemoryWorker(q, worker.Handlers{}, worker.WithName("w1"))
		go w.Run(context.Background())

		convey.Convey("Then Shutdown returns once the loop exits", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
		})
	})
}
