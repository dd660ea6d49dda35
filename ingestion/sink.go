package ingestion

import (
	"context"
	"fmt"
)

// Sink receives chunks. Add stores one chunk under name, which is the chunk's
// stable ID, so re-ingesting a file can upsert. Implementations must be safe
// for concurrent use; chunks of one file arrive in ascending index order.
type Sink interface {
	Add(ctx context.Context, content, name string, metadata map[string]any) error
}

// Validator is implemented by sinks that can tell before a run whether they
// are usable, such as a typed nil pointer wrapped in the Sink interface.
type Validator interface {
	Validate() error
}

// checkSink rejects nil sinks, nil SinkFuncs and sinks whose Validate fails.
func checkSink(sink Sink) error {
	switch s := sink.(type) {
	case nil:
		return ErrSinkRequired
	case SinkFunc:
		if s == nil {
			return ErrSinkRequired
		}
	case Validator:
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrSinkRequired, err)
		}
	}
	return nil
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, content, name string, metadata map[string]any) error

// Add calls f.
func (f SinkFunc) Add(ctx context.Context, content, name string, metadata map[string]any) error {
	return f(ctx, content, name, metadata)
}
