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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/repoingest/blob"
	"github.com/poiesic/repoingest/chunk"
	"github.com/poiesic/repoingest/core"
)

// fileProcessor turns one file into stored chunks for a single run.
type fileProcessor struct {
	repo           string
	branch         string
	fetcher        TextFetcher
	chunker        *chunk.Chunker
	sink           Sink
	includeRawText bool
	logger         *slog.Logger
}

// process fetches, chunks and stores one file. It never panics and always
// returns a terminal outcome.
func (fp *fileProcessor) process(ctx context.Context, entry core.FileEntry) (outcome core.FileOutcome) {
	defer func() {
		if r := recover(); r != nil {
			fp.logger.Error("panic while processing file", "path", entry.Path, "panic", r)
			outcome = core.Failed(entry.Path, fmt.Sprintf("panic: %v", r))
		}
	}()

	text, err := fp.fetcher.FetchText(ctx, fp.repo, entry.SHA, entry.Size)
	if err != nil {
		if skippable(err) {
			fp.logger.Debug("skipping file", "path", entry.Path, "reason", err)
			return core.Skipped(entry.Path, err.Error())
		}
		fp.logger.Warn("error fetching file", "path", entry.Path, "err", err)
		return core.Failed(entry.Path, err.Error())
	}

	pieces := fp.chunker.Split(text)
	if len(pieces) == 0 {
		return core.Skipped(entry.Path, "no content after trimming")
	}

	ids := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		record := core.NewChunkRecord(entry, fp.repo, fp.branch, i, piece, fp.includeRawText)
		if err := fp.sink.Add(ctx, record.Text, record.StableID, record.Metadata); err != nil {
			fp.logger.Warn("sink rejected chunk", "path", entry.Path, "chunk", i, "err", err)
			return core.Failed(entry.Path, fmt.Sprintf("storing chunk %d: %v", i, err))
		}
		ids = append(ids, record.StableID)
	}
	return core.Succeeded(entry.Path, ids)
}

// skippable reports whether a fetch error means the file is not ingestible
// text rather than that something went wrong.
func skippable(err error) bool {
	return errors.Is(err, blob.ErrTooLarge) ||
		errors.Is(err, blob.ErrBinary) ||
		errors.Is(err, blob.ErrDecodeFailure) ||
		errors.Is(err, blob.ErrEmpty)
}
