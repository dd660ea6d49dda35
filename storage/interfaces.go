package storage

import (
	"context"

	"github.com/poiesic/repoingest/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// FindSimilar finds chunks similar to the given vector.
	// Returns chunks with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// ChunkRepository stores ingested chunks keyed by their stable ID.
type ChunkRepository interface {
	Repository

	// UpsertChunks inserts chunks or replaces those with the same stable ID.
	// IDs are derived from the stable ID when unset. InsertedAt is kept from
	// the stored chunk on replace and UpdatedAt is always refreshed. A chunk
	// stored without a vector keeps the previous vector when its text is unchanged.
	UpsertChunks(ctx context.Context, chunks ...*core.StoredChunk) ([]*core.StoredChunk, error)

	// UpdateChunks replaces existing chunks.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.StoredChunk) ([]*core.StoredChunk, error)

	// GetChunk retrieves a chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.StoredChunk, error)

	// GetChunkByStableID retrieves a chunk by its stable ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunkByStableID(ctx context.Context, stableID string) (*core.StoredChunk, error)

	// ListChunks returns the chunks of one file ordered by chunk index.
	ListChunks(ctx context.Context, repo, path string) ([]*core.StoredChunk, error)

	// ListRepositoryChunks returns every chunk of a repository ordered by path, then index.
	ListRepositoryChunks(ctx context.Context, repo string) ([]*core.StoredChunk, error)

	// DeleteRepository removes every chunk of a repository and returns how many were removed.
	DeleteRepository(ctx context.Context, repo string) (int, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// ForEach calls fn with successive batches of at most batchSize chunks
	// until all chunks are visited or fn returns an error.
	ForEach(ctx context.Context, batchSize int, fn func([]*core.StoredChunk) error) error
}
