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

// Package storage defines where ingested chunks are kept.
//
// ChunkRepository is the storage abstraction: chunks are keyed by their
// stable ID so that re-ingesting a repository replaces its chunks instead
// of duplicating them. The badger subpackage provides the embedded
// implementation.
//
// # Serialization
//
// Chunks are encoded with MUS (github.com/mus-format/mus-go), a compact
// binary format. StoredChunkMUS writes fields in a fixed order and map
// entries in key order so identical chunks always encode to identical bytes.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	repo, err := badger.NewChunkRepository(backend)
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
