package sampleupload

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/okian/thermo/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Sentinel errors for run configuration.
var (
	ErrInvalidConfig = errors.New("invalid sample upload config")
)

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: url must not be empty", ErrInvalidConfig)
	case c.Files < 1 || c.Cities < 1 || c.Workers < 1:
		return fmt.Errorf("%w: files, cities and workers must be positive", ErrInvalidConfig)
	case c.FromYear <= 1900 || c.ToYear < c.FromYear:
		return fmt.Errorf("%w: years must satisfy 1900 < from <= to", ErrInvalidConfig)
	}
	return nil
}

// Run executes a complete sample upload: generate, upload, wait, verify.
func Run(ctx context.Context, config *Config) error {
	if err := config.validate(); err != nil {
		return err
	}
	stats := &Stats{StartTime: time.Now()}

	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	tag := uuid.NewString()[:8]

	logger.Get().Info(ctx, "starting sample upload",
		logger.String("baseURL", config.BaseURL),
		logger.String("tag", tag),
		logger.Int64("seed", int64(seed)),
		logger.Int("files", config.Files),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate files
	gen := NewGenerator(tag, seed, config.FromYear, config.ToYear)
	files, err := generateFiles(ctx, config, gen, stats)
	if err != nil {
		return fmt.Errorf("file generation failed: %w", err)
	}
	if config.OutputDir != "" {
		if err := saveFiles(ctx, config.OutputDir, files); err != nil {
			logger.Get().Warn(ctx, "failed to save generated files", logger.Error(err))
		}
	}

	// Step 3: Upload concurrently
	ids := uploadFiles(ctx, config, client, files, stats)
	if len(ids) == 0 {
		return errors.New("no file was accepted")
	}

	// Step 4: Wait for processing
	waitForTasks(ctx, config, client, ids, stats)

	// Step 5: Verify. Only fully processed runs can match.
	var verifyErr error
	if stats.UploadsFailed == 0 && stats.TasksFailed == 0 && stats.TasksUnfinished == 0 {
		records, err := client.Temperatures(ctx, tag)
		if err != nil {
			return fmt.Errorf("record retrieval failed: %w", err)
		}
		verifyErr = verifyResults(ctx, gen.Expected(), records, stats)
	} else {
		verifyErr = errors.New("skipping verification: not every file was processed")
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if verifyErr != nil {
		return verifyErr
	}
	logger.Get().Info(ctx, "sample upload completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")
	// /stats is JSON on every role; /healthz is Prometheus text.
	if err := client.get(ctx, "/stats", nil); err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveFiles writes the generated files into dir.
func saveFiles(ctx context.Context, dir string, files []File) error {
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.Name), f.Data, filePermission); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}
	logger.Get().Info(ctx, "generated files saved", logger.String("dir", dir), logger.Int("files", len(files)))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(stats *Stats) {
	var rowsPerSecond float64
	if stats.Duration > 0 {
		rowsPerSecond = float64(stats.RowsGenerated) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("filesGenerated", stats.FilesGenerated),
		logger.Int("rowsGenerated", stats.RowsGenerated),
		logger.Int("filesUploaded", stats.FilesUploaded),
		logger.Int("uploadsFailed", stats.UploadsFailed),
		logger.Int("tasksSucceeded", stats.TasksSucceeded),
		logger.Int("tasksFailed", stats.TasksFailed),
		logger.Int("tasksUnfinished", stats.TasksUnfinished),
		logger.Int("recordsExpected", stats.RecordsExpected),
		logger.Int("recordsFound", stats.RecordsFound),
		logger.Int("recordsMismatch", stats.RecordsMismatch),
		logger.Duration("duration", stats.Duration),
		logger.Float64("rowsPerSecond", rowsPerSecond))
}
