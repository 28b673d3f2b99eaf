// Package scheduler registers periodic and one-shot jobs on a cron engine.
//
// Jobs are registered explicitly by the caller before or after Start; nothing
// is scheduled as a side effect of importing a package.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/thermo/pkg/logger"
	"github.com/okian/thermo/pkg/metrics"
	"github.com/robfig/cron/v3"
)

// Job is the work run on each trigger.
type Job func(ctx context.Context)

// Scheduler wraps a cron.Cron with named jobs.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	logger   logger.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		logger:   logger.Get().Named("scheduler"),
		entries:  make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	cl := cronLogger{log: s.logger}
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// Every runs job every interval, first one interval after Start.
// Intervals are truncated to whole seconds.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval < time.Second {
		return fmt.Errorf("%w: %s", ErrInterval, interval)
	}
	return s.add(name, cron.Every(interval), job)
}

// After runs job once, delay after it is registered.
func (s *Scheduler) After(name string, delay time.Duration, job Job) error {
	return s.add(name, &onceSchedule{at: time.Now().Add(delay)}, job)
}

func (s *Scheduler) add(name string, schedule cron.Schedule, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	s.entries[name] = s.cron.Schedule(schedule, cron.FuncJob(func() {
		metrics.RecordSchedulerTriggered(name)
		s.logger.Debug(s.ctx, "job triggered", logger.String("job", name))
		job(s.ctx)
	}))
	return nil
}

// Remove unschedules a job. Unknown names are ignored.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(s.ctx, "scheduler started", logger.Int("jobs", len(s.Jobs())))
}

// Stop cancels the job context and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info(context.Background(), "scheduler stopped")
}

// onceSchedule fires at a single instant, or immediately when that instant
// has passed by the time cron first asks. cron never runs an entry whose next
// activation is the zero time.
type onceSchedule struct {
	at    time.Time
	fired bool
}

func (o *onceSchedule) Next(t time.Time) time.Time {
	if o.fired {
		return time.Time{}
	}
	o.fired = true
	if t.Before(o.at) {
		return o.at
	}
	return t
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(context.Background(), msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(context.Background(), msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
