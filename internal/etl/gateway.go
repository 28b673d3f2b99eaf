package etl

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/thermo/pkg/logger"
	"github.com/okian/thermo/pkg/metrics"
)

const (
	defaultMaxUploadBytes = 100 << 20
	uploadTimeLayout      = "20060102150405.000000"
)

// Gateway accepts uploaded files and enqueues them for processing.
type Gateway struct {
	inbox    *Inbox
	queue    Enqueuer
	maxBytes int64
	now      func() time.Time
	logger   logger.Logger
}

// NewGateway creates a gateway storing uploads in inbox.
func NewGateway(inbox *Inbox, q Enqueuer, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		inbox:    inbox,
		queue:    q,
		maxBytes: defaultMaxUploadBytes,
		now:      time.Now,
		logger:   logger.Get().Named("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxBytes returns the upload size limit.
func (g *Gateway) MaxBytes() int64 { return g.maxBytes }

// Submit stores r under a timestamped form of filename and enqueues it.
// When the queue refuses the task the file is left in the watched directory
// for the next scan and ErrUnavailable is returned.
func (g *Gateway) Submit(ctx context.Context, filename string, r io.Reader) (string, error) {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || !IsCSV(base) {
		return "", ErrNotCSV
	}
	name := g.now().UTC().Format(uploadTimeLayout) + "_" + base

	path, err := g.inbox.Store(name, r, g.maxBytes)
	if err != nil {
		return "", err
	}
	metrics.RecordFileUploaded()

	id, err := g.queue.Enqueue(ctx, TaskProcessFile, path)
	if err != nil {
		if rerr := g.inbox.Release(path); rerr != nil {
			g.logger.Error(ctx, "could not release upload", logger.Error(rerr))
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	g.logger.Info(ctx, "upload enqueued", logger.String("file", name), logger.String("task_id", id))
	return id, nil
}

// Pending lists files waiting in the watched directory.
func (g *Gateway) Pending() ([]FileInfo, error) {
	return g.inbox.Pending()
}
