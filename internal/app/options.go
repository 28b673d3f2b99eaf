package service

import (
	"time"

	"github.com/okian/thermo/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDataDir sets the watched directory.
func WithDataDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.dataDir = dir
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithWorkers controls whether Start runs the worker pool and scheduler.
// An API-only process passes false.
func WithWorkers(enabled bool) Option {
	return func(s *Service) {
		s.runWorkers = enabled
	}
}

// WithScheduler configures the periodic directory scan. A zero interval or
// enabled=false turns periodic scans off.
func WithScheduler(enabled bool, interval, startupDelay time.Duration) Option {
	return func(s *Service) {
		s.schedulerEnabled = enabled && interval > 0
		s.scanInterval = interval
		if startupDelay >= 0 {
			s.startupScanDelay = startupDelay
		}
	}
}

// WithClaimTTL sets the age after which claimed files are enqueued again.
func WithClaimTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.claimTTL = ttl
		}
	}
}

// WithMaxUploadBytes caps upload size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
