// Package sampleupload generates synthetic temperature CSV files, uploads
// them to a running service and checks the aggregates it serves.
package sampleupload

import "time"

// Config holds configuration for a sample upload run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Files     int           // Number of CSV files to upload
	Cities    int           // Cities per file
	FromYear  int           // First year of generated data
	ToYear    int           // Last year of generated data
	Workers   int           // Concurrent uploads
	Timeout   time.Duration // HTTP request timeout
	Wait      time.Duration // Maximum wait for tasks to finish
	Seed      uint64        // Random seed; 0 picks one
	OutputDir string        // If set, generated files are kept here
	LogFile   string        // Log file for run output
	Verbose   bool          // Log every task
}

// Stats holds run statistics.
type Stats struct {
	FilesGenerated  int
	RowsGenerated   int
	FilesUploaded   int
	UploadsFailed   int
	TasksSucceeded  int
	TasksFailed     int
	TasksUnfinished int
	RecordsExpected int
	RecordsFound    int
	RecordsMismatch int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// File is one generated CSV upload.
type File struct {
	Name string
	Data []byte
}

// key identifies one expected aggregate.
type key struct {
	City string
	Year int
}
