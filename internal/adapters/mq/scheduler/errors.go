package scheduler

import "errors"

// Sentinel kinds for scheduler errors.
var (
	ErrInterval  = errors.New("interval must be at least one second")
	ErrDuplicate = errors.New("job already registered")
)
