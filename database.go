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

package repoingest

import (
	"io"
	"log/slog"

	"github.com/poiesic/repoingest/ai"
	"github.com/poiesic/repoingest/ai/openai"
	"github.com/poiesic/repoingest/ingestion"
	"github.com/poiesic/repoingest/reembed"
	"github.com/poiesic/repoingest/search"
	"github.com/poiesic/repoingest/storage"
	"github.com/poiesic/repoingest/storage/badger"
)

// Database ties a chunk store to the pipeline, searcher and reembedder that
// work on it.
type Database struct {
	backend   *badger.Backend
	chunkRepo storage.ChunkRepository
	provider  ai.AIProvider
	sink      *ChunkSink
	logger    *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	inMemory bool
}

// WithAIConfig enables embeddings through an OpenAI-compatible service.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithAIProvider enables embeddings through an existing provider.
// The database takes ownership and closes it.
func WithAIProvider(p ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = p
	}
}

// WithInMemory keeps the store in memory. The path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// NewDatabase opens the chunk store at filePath. Without an AI option chunks
// are stored without vectors and search is unavailable.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil && options.aiConfig != nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			chunkRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	var embedder ai.Embedder
	if provider != nil {
		embedder = provider.Embedder()
	}
	sink, err := NewChunkSink(chunkRepo, embedder)
	if err != nil {
		chunkRepo.Close()
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:   backend,
		chunkRepo: chunkRepo,
		provider:  provider,
		sink:      sink,
		logger:    slog.Default(),
	}, nil
}

func (db *Database) Close() error {
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
		}
	}

	if err := db.chunkRepo.Close(); err != nil {
		db.logger.Error("error closing chunk repository", "err", err)
		return err
	}

	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) ChunkRepository() storage.ChunkRepository {
	return db.chunkRepo
}

// Sink returns the sink that writes ingested chunks to this database.
func (db *Database) Sink() *ChunkSink {
	return db.sink
}

// Embedder returns the configured embedder, or nil.
func (db *Database) Embedder() ai.Embedder {
	if db.provider == nil {
		return nil
	}
	return db.provider.Embedder()
}

func (db *Database) NewPipeline(client ingestion.RepositoryClient, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(client, opts...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	embedder := db.Embedder()
	if embedder == nil {
		return nil, search.ErrEmbedderRequired
	}
	return search.NewSearcher(db.chunkRepo, embedder, opts...)
}

// NewReembedder returns a reembedder over this database's chunks.
func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	embedder := db.Embedder()
	if embedder == nil {
		return nil, search.ErrEmbedderRequired
	}
	return reembed.NewReembedder(db.chunkRepo, embedder, config, progress), nil
}
