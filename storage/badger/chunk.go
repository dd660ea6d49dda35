package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/repoingest/core"
	"github.com/poiesic/repoingest/storage"
)

// deleteBatchSize bounds the keys removed per transaction so large
// repositories stay under badger's transaction size limit.
const deleteBatchSize = 1000

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
	now     func() time.Time
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &ChunkRepository{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases resources. ChunkRepository has no resources to release.
func (r *ChunkRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *ChunkRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// UpsertChunks stores chunks, replacing any stored under the same stable ID.
func (r *ChunkRepository) UpsertChunks(ctx context.Context, chunks ...*core.StoredChunk) ([]*core.StoredChunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			if chunk.StableID == "" {
				return fmt.Errorf("%w: chunk has no stable ID", storage.ErrInvalidQuery)
			}
			if chunk.Id == 0 {
				chunk.Id = core.IDFromContent(chunk.StableID)
			}

			key := makeChunkKey(chunk.Id)
			old, err := readChunk(tx, key)
			if err != nil {
				return err
			}

			now := r.now()
			chunk.InsertedAt = now
			if old != nil {
				chunk.InsertedAt = old.InsertedAt
				if len(chunk.Vector) == 0 && old.Text == chunk.Text {
					chunk.Vector = old.Vector
				}
				if err := dropStalePathKey(tx, old, chunk); err != nil {
					return err
				}
			}
			chunk.UpdatedAt = now

			if err := writeChunk(tx, key, chunk); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// UpdateChunks replaces existing chunks.
func (r *ChunkRepository) UpdateChunks(ctx context.Context, chunks ...*core.StoredChunk) ([]*core.StoredChunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.Id)

			old, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: chunk %d", storage.ErrNotFound, chunk.Id)
			}

			chunk.UpdatedAt = r.now()
			if err := dropStalePathKey(tx, old, chunk); err != nil {
				return err
			}
			if err := writeChunk(tx, key, chunk); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id core.ID) (*core.StoredChunk, error) {
	var result *core.StoredChunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readChunk(tx, makeChunkKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetChunkByStableID retrieves a chunk by its stable ID.
func (r *ChunkRepository) GetChunkByStableID(ctx context.Context, stableID string) (*core.StoredChunk, error) {
	chunk, err := r.GetChunk(ctx, core.IDFromContent(stableID))
	if err != nil {
		return nil, err
	}
	// Guards against hash collisions
	if chunk.StableID != stableID {
		return nil, storage.ErrNotFound
	}
	return chunk, nil
}

// ListChunks returns the chunks of one file ordered by chunk index.
func (r *ChunkRepository) ListChunks(ctx context.Context, repo, path string) ([]*core.StoredChunk, error) {
	return r.listByPrefix(makeFilePrefix(repo, path))
}

// ListRepositoryChunks returns every chunk of a repository ordered by path, then index.
func (r *ChunkRepository) ListRepositoryChunks(ctx context.Context, repo string) ([]*core.StoredChunk, error) {
	return r.listByPrefix(makeRepoPrefix(repo))
}

// DeleteRepository removes every chunk of a repository.
func (r *ChunkRepository) DeleteRepository(ctx context.Context, repo string) (int, error) {
	prefix := makeRepoPrefix(repo)
	deleted := 0

	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		removed := 0
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)

			var indexKeys [][]byte
			var ids []core.ID
			for iter.Rewind(); iter.Valid() && len(indexKeys) < deleteBatchSize; iter.Next() {
				item := iter.Item()
				id, err := readIndexedID(item)
				if err != nil {
					iter.Close()
					return err
				}
				indexKeys = append(indexKeys, item.KeyCopy(nil))
				ids = append(ids, id)
			}
			iter.Close()

			for i, key := range indexKeys {
				if err := tx.Delete(key); err != nil {
					return err
				}
				if err := tx.Delete(makeChunkKey(ids[i])); err != nil {
					return err
				}
			}
			removed = len(indexKeys)
			if removed == 0 {
				return nil
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return deleted, err
		}

		deleted += removed
		if removed < deleteBatchSize {
			return deleted, nil
		}
	}
}

// Count returns the number of stored chunks.
func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkRecordPrefix()
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ForEach pages through all chunks in key order. Each page is read in its
// own transaction so fn may write to the repository.
func (r *ChunkRepository) ForEach(ctx context.Context, batchSize int, fn func([]*core.StoredChunk) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", storage.ErrInvalidQuery, batchSize)
	}

	prefix := makeChunkRecordPrefix()
	var after []byte

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var batch []*core.StoredChunk
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)
			defer iter.Close()

			iter.Rewind()
			if after != nil {
				iter.Seek(after)
				if iter.Valid() && bytes.Equal(iter.Item().Key(), after) {
					iter.Next()
				}
			}

			for ; iter.Valid() && len(batch) < batchSize; iter.Next() {
				chunk, err := readItem(iter.Item())
				if err != nil {
					return err
				}
				batch = append(batch, chunk)
				after = iter.Item().KeyCopy(after[:0])
			}
			return nil
		}, false)
		if err != nil {
			return err
		}

		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
	}
}

// Helper methods

// listByPrefix resolves path index entries under prefix to chunks.
func (r *ChunkRepository) listByPrefix(prefix []byte) ([]*core.StoredChunk, error) {
	var results []*core.StoredChunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			id, err := readIndexedID(iter.Item())
			if err != nil {
				return err
			}
			chunk, err := readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)
	return results, err
}

// writeChunk stores the record and its path index entry.
func writeChunk(tx *badger.Txn, key []byte, chunk *core.StoredChunk) error {
	if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
		return err
	}
	pathKey := makeChunkPathKey(chunk.Repo, chunk.Path, chunk.ChunkIndex)
	return tx.Set(pathKey, storage.MarshalID(chunk.Id))
}

// dropStalePathKey removes the old path index entry when a chunk moved.
func dropStalePathKey(tx *badger.Txn, old, chunk *core.StoredChunk) error {
	if old.Repo == chunk.Repo && old.Path == chunk.Path && old.ChunkIndex == chunk.ChunkIndex {
		return nil
	}
	return tx.Delete(makeChunkPathKey(old.Repo, old.Path, old.ChunkIndex))
}

// readChunk reads a chunk from the transaction. A missing key yields nil, nil.
func readChunk(tx *badger.Txn, key []byte) (*core.StoredChunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return readItem(item)
}

func readItem(item *badger.Item) (*core.StoredChunk, error) {
	var chunk *core.StoredChunk
	err := item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}

func readIndexedID(item *badger.Item) (core.ID, error) {
	var id core.ID
	err := item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	})
	return id, err
}
