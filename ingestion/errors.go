package ingestion

import "errors"

var (
	// ErrClientRequired is returned when a repository client is not provided.
	ErrClientRequired = errors.New("repository client required")

	// ErrSinkRequired is returned by Run when no sink is given.
	ErrSinkRequired = errors.New("sink required")

	// ErrInvalidRepo is returned by Run when the repository is not of the form owner/name.
	ErrInvalidRepo = errors.New("invalid repository")

	// ErrInvalidConfig is returned for an unusable pipeline setting.
	ErrInvalidConfig = errors.New("invalid pipeline configuration")
)
