package remote

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrResourceNotFound is returned for a 404. It is never retried.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrRateLimited marks an attempt rejected by a primary or secondary rate limit.
	// It only surfaces inside the cause chain of ErrRequestFailed.
	ErrRateLimited = errors.New("rate limited")

	// ErrRequestFailed is returned once the retry budget is exhausted or a
	// response cannot be used.
	ErrRequestFailed = errors.New("request failed")

	// ErrInvalidOption is returned by NewClient for an unusable option value.
	ErrInvalidOption = errors.New("invalid client option")

	errUnusableResponse = errors.New("unusable response")
)

// rateLimitError is a rate-limited attempt along with how long to wait before the next one.
type rateLimitError struct {
	status int
	wait   time.Duration
	cause  error
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (status %d, retry in %s): %v", e.status, e.wait, e.cause)
}

func (e *rateLimitError) Unwrap() []error {
	return []error{ErrRateLimited, e.cause}
}
