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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRepo indicates a repository identifier is not of the form owner/name.
	ErrInvalidRepo = errors.New("invalid repository identifier")

	// ErrInvalidChunk indicates a ChunkRecord failed validation.
	ErrInvalidChunk = errors.New("invalid chunk record")

	// ErrEmptyContent indicates the chunk text is empty after trimming.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyPath indicates the chunk has no file path.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrNegativeIndex indicates a chunk index below zero.
	ErrNegativeIndex = errors.New("chunk index cannot be negative")

	// ErrStableIDMismatch indicates the stable ID does not match repo, path and index.
	ErrStableIDMismatch = errors.New("stable id does not match chunk coordinates")
)
