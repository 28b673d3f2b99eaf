// Package etl moves temperature CSV files from the watched directory through
// aggregation into the store.
package etl

// Task names understood by the ETL workers.
const (
	// TaskProcessFile takes one argument: the absolute path of a claimed file.
	TaskProcessFile = "etl.process_file"
	// TaskScanDirectory takes no arguments.
	TaskScanDirectory = "etl.scan_directory"
)
