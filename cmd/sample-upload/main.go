package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/thermo/internal/sampleupload"
	"github.com/okian/thermo/pkg/logger"
)

// Default configuration constants.
const (
	defaultFiles    = 8
	defaultCities   = 4
	defaultFromYear = 1990
	defaultToYear   = 2010
	defaultWorkers  = 4
	defaultTimeout  = 30 * time.Second
	defaultWait     = 2 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8000", "Base URL of the service")
		files     = flag.Int("files", defaultFiles, "Number of files to upload")
		cities    = flag.Int("cities", defaultCities, "Cities per file")
		fromYear  = flag.Int("from", defaultFromYear, "First year of generated data")
		toYear    = flag.Int("to", defaultToYear, "Last year of generated data")
		workers   = flag.Int("workers", defaultWorkers, "Concurrent uploads")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait      = flag.Duration("wait", defaultWait, "Maximum wait for tasks to finish")
		seed      = flag.Uint64("seed", 0, "Random seed, 0 picks one")
		outputDir = flag.String("output", "", "Keep generated files in this directory")
		logFile   = flag.String("log", "", "Log file (default: sample_upload_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Log every upload and task")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		sampleupload.ShowHelp()
		return
	}

	closer, err := sampleupload.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("failed to set up logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := &sampleupload.Config{
		BaseURL:   *baseURL,
		Files:     *files,
		Cities:    *cities,
		FromYear:  *fromYear,
		ToYear:    *toYear,
		Workers:   *workers,
		Timeout:   *timeout,
		Wait:      *wait,
		Seed:      *seed,
		OutputDir: *outputDir,
		LogFile:   *logFile,
		Verbose:   *verbose,
	}

	if err := sampleupload.Run(ctx, config); err != nil {
		logger.Get().Error(ctx, "sample upload failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}
