package chunk

import "errors"

var (
	// ErrInvalidConfig is returned when size and overlap cannot produce forward progress.
	ErrInvalidConfig = errors.New("invalid chunker configuration")
)
