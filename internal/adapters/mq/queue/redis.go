package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/thermo/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "thermo"
	defaultPollTimeout = time.Second
	redisRetryBackoff  = 500 * time.Millisecond
)

// Status hash fields.
const (
	fieldTaskID    = "task_id"
	fieldName      = "name"
	fieldState     = "state"
	fieldResult    = "result"
	fieldError     = "error"
	fieldUpdatedAt = "updated_at"
)

// RedisQueue implements Queue on Redis lists.
//
// Enqueue pushes onto <prefix>:pending. Delivery moves a task atomically into
// <prefix>:processing:<consumer> and Ack removes it from there, so a task
// delivered to a crashed consumer is still in Redis and Recover puts it back.
// Statuses live in <prefix>:task:<id> hashes with an expiry.
type RedisQueue struct {
	client      *redis.Client
	prefix      string
	consumer    string
	statusTTL   time.Duration
	pollTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewRedisQueue creates a queue on an existing client. The client is owned by
// the caller and is not closed by Close.
func NewRedisQueue(client *redis.Client, opts ...RedisOption) *RedisQueue {
	host, _ := os.Hostname()
	q := &RedisQueue{
		client:      client,
		prefix:      defaultRedisPrefix,
		consumer:    fmt.Sprintf("%s-%d", host, os.Getpid()),
		statusTTL:   defaultStatusTTL,
		pollTimeout: defaultPollTimeout,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisQueue) pendingKey() string    { return q.prefix + ":pending" }
func (q *RedisQueue) processingKey() string { return q.prefix + ":processing:" + q.consumer }
func (q *RedisQueue) statusKey(id string) string {
	return q.prefix + ":task:" + id
}

func (q *RedisQueue) isClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Enqueue writes the PENDING status and pushes the task in one transaction.
func (q *RedisQueue) Enqueue(ctx context.Context, name string, args ...string) (string, error) {
	if q.isClosed() {
		metrics.RecordTaskEnqueueError("closed")
		return "", ErrClosed
	}

	t := Task{ID: uuid.NewString(), Name: name, Args: args, EnqueuedAt: time.Now().UTC()}
	payload, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode task: %w", err)
	}

	key := q.statusKey(t.ID)
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			fieldTaskID:    t.ID,
			fieldName:      name,
			fieldState:     string(StatePending),
			fieldUpdatedAt: t.EnqueuedAt.Format(time.RFC3339Nano),
		})
		pipe.Expire(ctx, key, q.statusTTL)
		pipe.LPush(ctx, q.pendingKey(), payload)
		return nil
	})
	if err != nil {
		metrics.RecordTaskEnqueueError("redis")
		return "", fmt.Errorf("enqueue %s: %w", name, err)
	}
	metrics.RecordTaskEnqueued(name)
	return t.ID, nil
}

// Dequeue starts a goroutine that moves tasks from the pending list into this
// consumer's processing list and delivers them.
func (q *RedisQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil || q.isClosed() {
				return
			}
			raw, err := q.client.BLMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT", q.pollTimeout).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				metrics.RecordErrorByComponent("queue", "redis_pop")
				select {
				case <-time.After(redisRetryBackoff):
				case <-q.done:
					return
				case <-ctx.Done():
					return
				}
				continue
			}

			var t Task
			if err := json.Unmarshal([]byte(raw), &t); err != nil {
				// Drop payloads that cannot be decoded.
				metrics.RecordErrorByComponent("queue", "decode")
				q.client.LRem(ctx, q.processingKey(), 1, raw)
				continue
			}
			t.raw = raw

			select {
			case out <- t:
			case <-ctx.Done():
				q.requeue(raw)
				return
			}
		}
	}()
	return out
}

// requeue returns an undelivered task to the consumer end of the pending list.
func (q *RedisQueue) requeue(raw string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisRetryBackoff)
	defer cancel()
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, raw)
		pipe.RPush(ctx, q.pendingKey(), raw)
		return nil
	})
	if err != nil {
		metrics.RecordErrorByComponent("queue", "redis_requeue")
	}
}

// Ack removes the task from this consumer's processing list.
func (q *RedisQueue) Ack(ctx context.Context, t Task) error {
	if t.raw == "" {
		return nil
	}
	if err := q.client.LRem(ctx, q.processingKey(), 1, t.raw).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", t.ID, err)
	}
	return nil
}

// Recover moves tasks left in this consumer's processing list back onto the
// pending list. It returns how many were moved.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.RPopLPush(ctx, q.processingKey(), q.pendingKey()).Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("recover in-flight tasks: %w", err)
		}
		n++
	}
	if n > 0 {
		metrics.RecordQueueRequeued(n)
	}
	return n, nil
}

// SetStatus overwrites the status hash and refreshes its expiry.
func (q *RedisQueue) SetStatus(ctx context.Context, s Status) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	key := q.statusKey(s.TaskID)
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			fieldTaskID:    s.TaskID,
			fieldName:      s.Name,
			fieldState:     string(s.State),
			fieldResult:    s.Result,
			fieldError:     s.Error,
			fieldUpdatedAt: s.UpdatedAt.Format(time.RFC3339Nano),
		})
		pipe.Expire(ctx, key, q.statusTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set status %s: %w", s.TaskID, err)
	}
	return nil
}

// Status reads the status hash of a task.
func (q *RedisQueue) Status(ctx context.Context, id string) (Status, error) {
	fields, err := q.client.HGetAll(ctx, q.statusKey(id)).Result()
	if err != nil {
		return Status{}, fmt.Errorf("get status %s: %w", id, err)
	}
	if len(fields) == 0 {
		return Status{}, ErrNotFound
	}
	s := Status{
		TaskID: fields[fieldTaskID],
		Name:   fields[fieldName],
		State:  State(fields[fieldState]),
		Result: fields[fieldResult],
		Error:  fields[fieldError],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt]); err == nil {
		s.UpdatedAt = ts
	}
	return s, nil
}

// Len returns the length of the pending list, or 0 when Redis is unreachable.
func (q *RedisQueue) Len(ctx context.Context) int {
	n, err := q.client.LLen(ctx, q.pendingKey()).Result()
	if err != nil {
		metrics.RecordErrorByComponent("queue", "redis_len")
		return 0
	}
	metrics.UpdateQueueLength(int(n))
	return int(n)
}

// Close stops Dequeue loops after their current poll.
func (q *RedisQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
