package blob

import "errors"

// Each of these means the file is skipped rather than failed.
var (
	// ErrTooLarge is returned when the listed size exceeds the cap. No request is made.
	ErrTooLarge = errors.New("blob exceeds size cap")

	// ErrBinary is returned when the content looks binary.
	ErrBinary = errors.New("blob is binary")

	// ErrDecodeFailure is returned when the payload cannot be decoded to text.
	ErrDecodeFailure = errors.New("blob could not be decoded")

	// ErrEmpty is returned when the blob has no content.
	ErrEmpty = errors.New("blob is empty")
)

var (
	// ErrSourceRequired is returned when NewFetcher is given no blob source.
	ErrSourceRequired = errors.New("blob source required")

	// ErrUnsupportedEncoding is returned for a candidate encoding name that cannot be resolved.
	ErrUnsupportedEncoding = errors.New("unsupported text encoding")
)
