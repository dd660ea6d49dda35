package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/repoingest/core"
	"github.com/poiesic/repoingest/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupChunkRepo(t *testing.T) *ChunkRepository {
	t.Helper()
	repo, backend, err := NewMemoryChunkRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

func newChunk(repo, path string, index int, text string) *core.StoredChunk {
	return &core.StoredChunk{
		StableID:   core.StableID(repo, path, index),
		Repo:       repo,
		Path:       path,
		ChunkIndex: index,
		Text:       text,
		Metadata:   map[string]string{core.MetaRepo: repo, core.MetaPath: path},
	}
}

func TestNewChunkRepository_NilBackend(t *testing.T) {
	_, err := NewChunkRepository(nil)
	assert.Error(t, err)
}

func TestUpsertChunks_Insert(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	chunk := newChunk("acme/svc", "main.go", 0, "package main")
	stored, err := repo.UpsertChunks(ctx, chunk)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	assert.Equal(t, core.IDFromContent(chunk.StableID), stored[0].Id)
	assert.False(t, stored[0].InsertedAt.IsZero())
	assert.Equal(t, stored[0].InsertedAt, stored[0].UpdatedAt)

	got, err := repo.GetChunk(ctx, stored[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "package main", got.Text)
	assert.Equal(t, "main.go", got.Metadata[core.MetaPath])
}

func TestUpsertChunks_RequiresStableID(t *testing.T) {
	repo := setupChunkRepo(t)

	_, err := repo.UpsertChunks(context.Background(), &core.StoredChunk{Text: "orphan"})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpsertChunks_ReplacesByStableID(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	_, err := repo.UpsertChunks(ctx, newChunk("acme/svc", "main.go", 0, "v1"))
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	_, err = repo.UpsertChunks(ctx, newChunk("acme/svc", "main.go", 0, "v2"))
	require.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repo.GetChunkByStableID(ctx, core.StableID("acme/svc", "main.go", 0))
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Text)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), got.InsertedAt)
	assert.Equal(t, clock, got.UpdatedAt)
}

func TestUpsertChunks_KeepsVectorForUnchangedText(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	first := newChunk("acme/svc", "main.go", 0, "same")
	first.Vector = []float32{0.6, 0.8}
	_, err := repo.UpsertChunks(ctx, first)
	require.NoError(t, err)

	_, err = repo.UpsertChunks(ctx, newChunk("acme/svc", "main.go", 0, "same"))
	require.NoError(t, err)
	got, err := repo.GetChunkByStableID(ctx, first.StableID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, got.Vector)

	_, err = repo.UpsertChunks(ctx, newChunk("acme/svc", "main.go", 0, "changed"))
	require.NoError(t, err)
	got, err = repo.GetChunkByStableID(ctx, first.StableID)
	require.NoError(t, err)
	assert.Empty(t, got.Vector)
}

func TestGetChunk_NotFound(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	_, err := repo.GetChunk(ctx, core.ID(12345))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.GetChunkByStableID(ctx, "nobody/none:x#0")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateChunks(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	stored, err := repo.UpsertChunks(ctx, newChunk("acme/svc", "main.go", 0, "text"))
	require.NoError(t, err)

	chunk := stored[0]
	chunk.Vector = []float32{1, 0}
	_, err = repo.UpdateChunks(ctx, chunk)
	require.NoError(t, err)

	got, err := repo.GetChunk(ctx, chunk.Id)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got.Vector)
	assert.WithinDuration(t, chunk.InsertedAt, got.InsertedAt, time.Millisecond)
}

func TestUpdateChunks_NotFound(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	existing, err := repo.UpsertChunks(ctx, newChunk("acme/svc", "a.go", 0, "a"))
	require.NoError(t, err)
	existing[0].Text = "changed"

	missing := newChunk("acme/svc", "b.go", 0, "b")
	missing.Id = core.IDFromContent(missing.StableID)

	_, err = repo.UpdateChunks(ctx, existing[0], missing)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Nothing from the failed batch is committed
	got, err := repo.GetChunk(ctx, existing[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Text)
}

func TestListChunks_OrderedByIndex(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	// Insert out of order, with an index above 9 to catch lexical sorting
	for _, idx := range []int{10, 2, 0, 1} {
		_, err := repo.UpsertChunks(ctx, newChunk("acme/svc", "main.go", idx, fmt.Sprintf("chunk %d", idx)))
		require.NoError(t, err)
	}
	_, err := repo.UpsertChunks(ctx, newChunk("acme/svc", "main.go.bak", 0, "other file"))
	require.NoError(t, err)

	chunks, err := repo.ListChunks(ctx, "acme/svc", "main.go")
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	var indices []int
	for _, c := range chunks {
		indices = append(indices, c.ChunkIndex)
	}
	assert.Equal(t, []int{0, 1, 2, 10}, indices)
}

func TestListRepositoryChunks(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertChunks(ctx,
		newChunk("acme/svc", "src/b.go", 0, "b0"),
		newChunk("acme/svc", "README.md", 1, "r1"),
		newChunk("acme/svc", "README.md", 0, "r0"),
		newChunk("acme/svc-other", "README.md", 0, "other"),
	)
	require.NoError(t, err)

	chunks, err := repo.ListRepositoryChunks(ctx, "acme/svc")
	require.NoError(t, err)

	var texts []string
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	assert.Equal(t, []string{"r0", "r1", "b0"}, texts)

	none, err := repo.ListRepositoryChunks(ctx, "nobody/none")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteRepository(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	var chunks []*core.StoredChunk
	for i := 0; i < deleteBatchSize+5; i++ {
		chunks = append(chunks, newChunk("acme/svc", fmt.Sprintf("f%04d.go", i), 0, "x"))
	}
	// Split the inserts to stay clear of the transaction size limit
	for start := 0; start < len(chunks); start += 200 {
		end := min(start+200, len(chunks))
		_, err := repo.UpsertChunks(ctx, chunks[start:end]...)
		require.NoError(t, err)
	}
	_, err := repo.UpsertChunks(ctx, newChunk("acme/keep", "main.go", 0, "keep"))
	require.NoError(t, err)

	deleted, err := repo.DeleteRepository(ctx, "acme/svc")
	require.NoError(t, err)
	assert.Equal(t, deleteBatchSize+5, deleted)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	deleted, err = repo.DeleteRepository(ctx, "acme/svc")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestForEach_Batches(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := repo.UpsertChunks(ctx, newChunk("acme/svc", fmt.Sprintf("f%d.go", i), 0, "x"))
		require.NoError(t, err)
	}

	var sizes []int
	seen := make(map[core.ID]bool)
	err := repo.ForEach(ctx, 3, func(batch []*core.StoredChunk) error {
		sizes = append(sizes, len(batch))
		for _, c := range batch {
			seen[c.Id] = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Len(t, seen, 7)
}

func TestForEach_CanWriteDuringIteration(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.UpsertChunks(ctx, newChunk("acme/svc", fmt.Sprintf("f%d.go", i), 0, "x"))
		require.NoError(t, err)
	}

	err := repo.ForEach(ctx, 2, func(batch []*core.StoredChunk) error {
		for _, c := range batch {
			c.Vector = []float32{1}
		}
		_, err := repo.UpdateChunks(ctx, batch...)
		return err
	})
	require.NoError(t, err)

	results, err := repo.FindSimilar(ctx, []float32{1}, 0.5, 10)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestForEach_StopsOnError(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := repo.UpsertChunks(ctx, newChunk("acme/svc", fmt.Sprintf("f%d.go", i), 0, "x"))
		require.NoError(t, err)
	}

	calls := 0
	stop := errors.New("stop")
	err := repo.ForEach(ctx, 1, func([]*core.StoredChunk) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestForEach_InvalidBatchSize(t *testing.T) {
	repo := setupChunkRepo(t)
	err := repo.ForEach(context.Background(), 0, func([]*core.StoredChunk) error { return nil })
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestForEach_Empty(t *testing.T) {
	repo := setupChunkRepo(t)
	calls := 0
	err := repo.ForEach(context.Background(), 10, func([]*core.StoredChunk) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestForEach_CancelledContext(t *testing.T) {
	repo := setupChunkRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.ForEach(ctx, 10, func([]*core.StoredChunk) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
