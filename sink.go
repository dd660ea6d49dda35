package repoingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/poiesic/repoingest/ai"
	"github.com/poiesic/repoingest/core"
	"github.com/poiesic/repoingest/ingestion"
	"github.com/poiesic/repoingest/reembed"
	"github.com/poiesic/repoingest/storage"
)

// ChunkSink stores chunks handed over by an ingestion pipeline in a chunk
// repository. When an embedder is set every chunk is stored with a
// unit-length vector so it can be searched.
type ChunkSink struct {
	repo     storage.ChunkRepository
	embedder ai.Embedder
	logger   *slog.Logger
}

var (
	_ ingestion.Sink      = (*ChunkSink)(nil)
	_ ingestion.Validator = (*ChunkSink)(nil)
)

// NewChunkSink creates a sink writing to repo. embedder may be nil.
func NewChunkSink(repo storage.ChunkRepository, embedder ai.Embedder) (*ChunkSink, error) {
	if repo == nil {
		return nil, errors.New("chunk repository is required")
	}
	return &ChunkSink{
		repo:     repo,
		embedder: embedder,
		logger:   slog.Default().With("component", "chunk-sink"),
	}, nil
}

// Validate reports whether the sink can store chunks. It is safe to call on
// a nil *ChunkSink.
func (s *ChunkSink) Validate() error {
	if s == nil || s.repo == nil {
		return errors.New("chunk sink has no repository")
	}
	return nil
}

// Add stores content under the stable ID name. The chunk coordinates are
// read from the metadata the pipeline attaches to every chunk.
func (s *ChunkSink) Add(ctx context.Context, content, name string, metadata map[string]any) error {
	record, err := recordFromMetadata(content, name, metadata)
	if err != nil {
		return err
	}

	chunk := &core.StoredChunk{
		StableID:   record.StableID,
		Repo:       record.Repo,
		Path:       record.Path,
		ChunkIndex: record.ChunkIndex,
		Text:       content,
		Metadata:   stringifyMetadata(metadata),
	}

	if s.embedder != nil {
		vector, err := s.embedder.EmbedText(ctx, content)
		if err != nil {
			return fmt.Errorf("embedding %s: %w", name, err)
		}
		chunk.Vector = reembed.NormalizeVector(vector)
	}

	if _, err := s.repo.UpsertChunks(ctx, chunk); err != nil {
		s.logger.Error("error storing chunk", "stable_id", name, "err", err)
		return err
	}
	return nil
}

func recordFromMetadata(content, name string, metadata map[string]any) (*core.ChunkRecord, error) {
	index, err := chunkIndex(metadata[core.MetaChunkIndex])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidChunk, err)
	}
	record := &core.ChunkRecord{
		Repo:       metaString(metadata, core.MetaRepo),
		Path:       metaString(metadata, core.MetaPath),
		ChunkIndex: index,
		Text:       content,
		StableID:   name,
	}
	if err := core.ValidateChunkRecord(record); err != nil {
		return nil, err
	}
	return record, nil
}

func chunkIndex(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	case nil:
		return 0, errors.New("missing chunk index")
	default:
		return 0, fmt.Errorf("unsupported chunk index type %T", v)
	}
}

func metaString(metadata map[string]any, key string) string {
	if v, ok := metadata[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func stringifyMetadata(metadata map[string]any) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
