package smoke

import "errors"

// Sentinel kinds for smoke run failures.
var (
	ErrConfig     = errors.New("invalid smoke config")
	ErrUnhealthy  = errors.New("service unhealthy")
	ErrMismatched = errors.New("unexpected responses")
)
