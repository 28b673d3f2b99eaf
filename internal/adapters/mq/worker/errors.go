package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrUnknownTask = errors.New("no handler registered for task")
	ErrPanic       = errors.New("task handler panicked")
)
