package etl_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/thermo/internal/domain/model"
	"github.com/okian/thermo/pkg/logger"
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

type enqueued struct {
	name string
	args []string
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []enqueued
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, name string, args ...string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, enqueued{name: name, args: args})
	return "task-" + string(rune('a'+len(q.tasks)-1)), nil
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type fakeStore struct {
	mu   sync.Mutex
	rows []model.AggregateTemperature
	err  error
}

func (s *fakeStore) Insert(_ context.Context, rows []model.AggregateTemperature) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
	return nil
}

var errBroker = errors.New("broker unreachable")

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
