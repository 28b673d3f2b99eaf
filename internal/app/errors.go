package service

import (
	"fmt"

	"github.com/okian/thermo/internal/etl"
)

// ErrNotStarted is returned by operations called before Start. It matches
// etl.ErrUnavailable.
var ErrNotStarted = fmt.Errorf("%w: service not started", etl.ErrUnavailable)
