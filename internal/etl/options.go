package etl

import (
	"time"

	"github.com/okian/thermo/internal/domain/aggregate"
	"github.com/okian/thermo/pkg/logger"
)

// ProcessorOption applies a configuration option to the Processor.
type ProcessorOption func(*Processor)

// WithAggregator replaces the default yearly aggregator.
func WithAggregator(a aggregate.Aggregator) ProcessorOption {
	return func(p *Processor) {
		if a != nil {
			p.aggregator = a
		}
	}
}

// WithProcessorLogger sets a custom logger for the processor.
func WithProcessorLogger(l logger.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WatcherOption applies a configuration option to the Watcher.
type WatcherOption func(*Watcher)

// WithClaimTTL sets the age after which a claimed file is considered
// abandoned and enqueued again. Zero disables recovery.
func WithClaimTTL(ttl time.Duration) WatcherOption {
	return func(w *Watcher) {
		if ttl >= 0 {
			w.claimTTL = ttl
		}
	}
}

// WithWatcherLogger sets a custom logger for the watcher.
func WithWatcherLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// GatewayOption applies a configuration option to the Gateway.
type GatewayOption func(*Gateway)

// WithMaxUploadBytes sets the upload size limit. Zero or less disables it.
func WithMaxUploadBytes(n int64) GatewayOption {
	return func(g *Gateway) {
		g.maxBytes = n
	}
}

// WithGatewayClock replaces time.Now for upload names.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}
