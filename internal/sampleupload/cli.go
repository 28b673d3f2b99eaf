package sampleupload

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/thermo/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging logs to both stdout and a file. If logFile is empty, a
// timestamped filename is generated.
func SetupLogging(logFile string) (io.Closer, error) {
	if logFile == "" {
		logFile = "sample_upload_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file, nil
}

// ShowHelp prints usage information for the sample upload tool.
func ShowHelp() {
	os.Stdout.WriteString(`thermo sample upload
====================

Generates CSV files of monthly city temperatures with known yearly averages,
uploads them concurrently, waits for every ETL task and checks the records
served by /temperatures.

Usage:
  sample-upload [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8000")
  -files int
        Number of files to upload (default 8)
  -cities int
        Cities per file (default 4)
  -from int
        First year of generated data (default 1990)
  -to int
        Last year of generated data (default 2010)
  -workers int
        Concurrent uploads (default 4)
  -timeout duration
        HTTP request timeout (default 30s)
  -wait duration
        Maximum wait for tasks to finish (default 2m)
  -seed uint
        Random seed, 0 picks one (default 0)
  -output string
        Keep generated files in this directory
  -log string
        Log file (default: sample_upload_TIMESTAMP.log)
  -verbose
        Log every upload and task
  -help
        Show this help message

Examples:
  sample-upload -files 20 -workers 8
  sample-upload -url http://localhost:8080 -seed 42 -output ./samples
`)
}
