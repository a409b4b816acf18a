package jobs

import "errors"

var (
	// ErrJobNotFound is returned when no job matches the given id or key
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when a claim update matches no queued row
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in queued status")
)
