// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"

	"github.com/poiesic/repoingest/core"
	"github.com/poiesic/repoingest/storage"
)

const (
	// DefaultBatchSize is the default number of chunks to fetch in each batch
	DefaultBatchSize = 100
)

// ChunkIterator walks stored chunks in batches, optionally narrowed to one
// repository or to chunks that still lack a vector.
type ChunkIterator struct {
	repo        storage.ChunkRepository
	batchSize   int
	repository  string
	onlyMissing bool
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks per batch; non-positive values use DefaultBatchSize
// repository: "owner/name" to restrict iteration, or "" for every repository
func NewChunkIterator(repo storage.ChunkRepository, batchSize int, repository string, onlyMissing bool) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		repo:        repo,
		batchSize:   batchSize,
		repository:  repository,
		onlyMissing: onlyMissing,
	}
}

// ForEach calls fn with each batch of selected chunks.
// Iteration stops on first error from fn or when all chunks are processed.
// Context cancellation is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.StoredChunk) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if it.repository != "" {
		return it.forEachInRepository(ctx, fn)
	}

	return it.repo.ForEach(ctx, it.batchSize, func(chunks []*core.StoredChunk) error {
		selected := it.selectChunks(chunks)
		if len(selected) == 0 {
			return nil
		}
		if err := fn(selected); err != nil {
			return err
		}
		return ctx.Err()
	})
}

// Count returns how many chunks ForEach would visit.
func (it *ChunkIterator) Count(ctx context.Context) (int, error) {
	if it.repository == "" && !it.onlyMissing {
		return it.repo.Count(ctx)
	}

	total := 0
	err := it.ForEach(ctx, func(chunks []*core.StoredChunk) error {
		total += len(chunks)
		return nil
	})
	return total, err
}

func (it *ChunkIterator) forEachInRepository(ctx context.Context, fn func([]*core.StoredChunk) error) error {
	chunks, err := it.repo.ListRepositoryChunks(ctx, it.repository)
	if err != nil {
		return err
	}
	chunks = it.selectChunks(chunks)

	for i := 0; i < len(chunks); i += it.batchSize {
		end := min(i+it.batchSize, len(chunks))
		if err := fn(chunks[i:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// selectChunks drops chunks that already carry a vector when onlyMissing is set.
func (it *ChunkIterator) selectChunks(chunks []*core.StoredChunk) []*core.StoredChunk {
	if !it.onlyMissing {
		return chunks
	}
	selected := make([]*core.StoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Vector) == 0 {
			selected = append(selected, chunk)
		}
	}
	return selected
}
