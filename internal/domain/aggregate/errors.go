package aggregate

import "errors"

// Sentinel kinds for aggregation errors.
var (
	// ErrValidation marks structurally malformed input, such as a header
	// without the required columns.
	ErrValidation = errors.New("validation error")
)
