package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/repoingest/core"
	"github.com/poiesic/repoingest/storage"
	"github.com/poiesic/repoingest/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (storage.ChunkRepository, func()) {
	repo, backend, err := badger.NewMemoryChunkRepository()
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		backend.Close()
	}

	return repo, cleanup
}

// seedChunks stores n single-chunk files in repository, optionally with vectors.
func seedChunks(t *testing.T, repo storage.ChunkRepository, repository string, n int, withVector bool) []*core.StoredChunk {
	t.Helper()
	chunks := make([]*core.StoredChunk, n)
	for i := range chunks {
		path := fmt.Sprintf("file%02d.go", i)
		chunks[i] = &core.StoredChunk{
			StableID: core.StableID(repository, path, 0),
			Repo:     repository,
			Path:     path,
			Text:     fmt.Sprintf("text %s %d", repository, i),
		}
		if withVector {
			chunks[i].Vector = []float32{1, 0, 0}
		}
	}
	stored, err := repo.UpsertChunks(context.Background(), chunks...)
	require.NoError(t, err)
	return stored
}

func collect(t *testing.T, it *ChunkIterator) ([]int, int) {
	t.Helper()
	var sizes []int
	total := 0
	err := it.ForEach(context.Background(), func(chunks []*core.StoredChunk) error {
		sizes = append(sizes, len(chunks))
		total += len(chunks)
		return nil
	})
	require.NoError(t, err)
	return sizes, total
}

func TestChunkIterator_AllChunks(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	seedChunks(t, repo, "acme/a", 4, false)
	seedChunks(t, repo, "acme/b", 3, false)

	it := NewChunkIterator(repo, 3, "", false)
	sizes, total := collect(t, it)
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Equal(t, 7, total)

	count, err := it.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestChunkIterator_DefaultBatchSize(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	it := NewChunkIterator(repo, 0, "", false)
	assert.Equal(t, DefaultBatchSize, it.batchSize)
}

func TestChunkIterator_RepositoryFilter(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	seedChunks(t, repo, "acme/a", 4, false)
	seedChunks(t, repo, "acme/b", 3, false)

	it := NewChunkIterator(repo, 2, "acme/b", false)
	var repos []string
	err := it.ForEach(context.Background(), func(chunks []*core.StoredChunk) error {
		for _, c := range chunks {
			repos = append(repos, c.Repo)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/b", "acme/b", "acme/b"}, repos)

	count, err := it.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestChunkIterator_OnlyMissing(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	seedChunks(t, repo, "acme/a", 4, true)
	seedChunks(t, repo, "acme/b", 3, false)

	it := NewChunkIterator(repo, 10, "", true)
	_, total := collect(t, it)
	assert.Equal(t, 3, total)

	count, err := it.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestChunkIterator_Empty(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	sizes, total := collect(t, NewChunkIterator(repo, 10, "", false))
	assert.Empty(t, sizes)
	assert.Zero(t, total)
}

func TestChunkIterator_StopsOnError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	seedChunks(t, repo, "acme/a", 6, false)

	for _, repository := range []string{"", "acme/a"} {
		calls := 0
		stop := errors.New("stop")
		err := NewChunkIterator(repo, 2, repository, false).ForEach(context.Background(), func([]*core.StoredChunk) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls, "repository %q", repository)
	}
}

func TestChunkIterator_ContextCancelled(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	seedChunks(t, repo, "acme/a", 6, false)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewChunkIterator(repo, 2, "acme/a", false).ForEach(ctx, func([]*core.StoredChunk) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
