package queue

import "time"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of waiting tasks.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithStatusTTL sets how long task statuses are retained after their last update.
func WithStatusTTL(ttl time.Duration) Option {
	return func(q *InMemoryQueue) {
		if ttl > 0 {
			q.statusTTL = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(q *InMemoryQueue) {
		if now != nil {
			q.now = now
		}
	}
}

// RedisOption applies a configuration option to the RedisQueue.
type RedisOption func(*RedisQueue)

// WithPrefix sets the key prefix shared by every key the queue writes.
func WithPrefix(prefix string) RedisOption {
	return func(q *RedisQueue) {
		if prefix != "" {
			q.prefix = prefix
		}
	}
}

// WithConsumer names this process's processing list. Each worker process
// needs a stable, distinct name so its in-flight tasks can be recovered.
func WithConsumer(name string) RedisOption {
	return func(q *RedisQueue) {
		if name != "" {
			q.consumer = name
		}
	}
}

// WithRedisStatusTTL sets the expiry applied to task status hashes.
func WithRedisStatusTTL(ttl time.Duration) RedisOption {
	return func(q *RedisQueue) {
		if ttl > 0 {
			q.statusTTL = ttl
		}
	}
}

// WithPollTimeout bounds each blocking pop so Close is noticed promptly.
func WithPollTimeout(d time.Duration) RedisOption {
	return func(q *RedisQueue) {
		if d > 0 {
			q.pollTimeout = d
		}
	}
}
