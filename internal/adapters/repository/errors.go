package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidPage       = errors.New("page and page size must be positive")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)
