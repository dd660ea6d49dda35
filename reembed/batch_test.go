package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/repoingest/core"
	"github.com/poiesic/repoingest/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder for testing
type mockEmbedder struct {
	embedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if m.embedTextFunc != nil {
		return m.embedTextFunc(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedTextsFunc != nil {
		return m.embedTextsFunc(ctx, texts)
	}
	// Default: return unnormalized vectors for each text
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0} // magnitude = 3.0
	}
	return result, nil
}

func magnitude(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return sum
}

func TestBatchProcessor_Process(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	stored := seedChunks(t, repo, "acme/a", 2, false)

	processor := NewBatchProcessor(repo, &mockEmbedder{}, 3, 10*time.Millisecond)
	require.NoError(t, processor.Process(ctx, stored))

	for _, chunk := range stored {
		got, err := repo.GetChunk(ctx, chunk.Id)
		require.NoError(t, err)
		require.NotEmpty(t, got.Vector, "should have embedding")
		assert.InDelta(t, 1.0, magnitude(got.Vector), 0.01, "vector should be normalized")
		assert.Equal(t, chunk.Text, got.Text)
	}
}

func TestBatchProcessor_EmbedsChunkText(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	stored := seedChunks(t, repo, "acme/a", 3, false)

	var seen []string
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			seen = append(seen, texts...)
			result := make([][]float32, len(texts))
			for i := range result {
				result[i] = []float32{1, 0}
			}
			return result, nil
		},
	}

	processor := NewBatchProcessor(repo, embedder, 1, time.Millisecond)
	require.NoError(t, processor.Process(context.Background(), stored))

	require.Len(t, seen, 3)
	for i, chunk := range stored {
		assert.Equal(t, chunk.Text, seen[i])
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	calls := 0
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			calls++
			return nil, nil
		},
	}

	processor := NewBatchProcessor(repo, embedder, 3, 10*time.Millisecond)
	require.NoError(t, processor.Process(context.Background(), nil))
	assert.Zero(t, calls)
}

func TestBatchProcessor_RetryOnFailure(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	stored := seedChunks(t, repo, "acme/a", 1, false)

	attempts := 0
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("temporary failure")
			}
			return [][]float32{{3, 4}}, nil
		},
	}

	processor := NewBatchProcessor(repo, embedder, 3, time.Millisecond)
	require.NoError(t, processor.Process(context.Background(), stored))
	assert.Equal(t, 3, attempts)

	got, err := repo.GetChunk(context.Background(), stored[0].Id)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, got.Vector[0], 1e-6)
	assert.InDelta(t, 0.8, got.Vector[1], 1e-6)
}

func TestBatchProcessor_MaxRetriesExceeded(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	stored := seedChunks(t, repo, "acme/a", 1, false)

	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("persistent failure")
		},
	}

	processor := NewBatchProcessor(repo, embedder, 2, time.Millisecond)
	err := processor.Process(context.Background(), stored)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "persistent failure")
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	stored := seedChunks(t, repo, "acme/a", 2, false)

	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0}}, nil
		},
	}

	processor := NewBatchProcessor(repo, embedder, 1, time.Millisecond)
	err := processor.Process(context.Background(), stored)
	assert.ErrorIs(t, err, ErrEmbeddingCountMismatch)
}

func TestBatchProcessor_MissingChunk(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ghost := &core.StoredChunk{Id: 99, StableID: "x/y:z#0", Text: "ghost"}
	processor := NewBatchProcessor(repo, &mockEmbedder{}, 1, time.Millisecond)

	err := processor.Process(context.Background(), []*core.StoredChunk{ghost})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
