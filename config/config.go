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

package config

import (
	"fmt"

	"github.com/poiesic/repoingest/ai"
	"github.com/poiesic/repoingest/blob"
	"github.com/poiesic/repoingest/chunk"
	"github.com/poiesic/repoingest/ingestion"
	"github.com/poiesic/repoingest/remote"
)

// Config is the complete application configuration.
type Config struct {
	GitHub GitHubConfig `koanf:"github" yaml:"github"`
	Ingest IngestConfig `koanf:"ingest" yaml:"ingest"`
	Store  StoreConfig  `koanf:"store" yaml:"store"`
	AI     AIConfig     `koanf:"ai" yaml:"ai"`
}

// GitHubConfig configures the API client.
type GitHubConfig struct {
	Token             string  `koanf:"token" yaml:"-"`
	BaseURL           string  `koanf:"base_url" yaml:"base_url"`
	RequestsPerSecond float64 `koanf:"requests_per_second" yaml:"requests_per_second"`
	MaxAttempts       int     `koanf:"max_attempts" yaml:"max_attempts"`
	RateLimitAttempts int     `koanf:"rate_limit_attempts" yaml:"rate_limit_attempts"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	MaxConcurrency int      `koanf:"max_concurrency" yaml:"max_concurrency"`
	ChunkSize      int      `koanf:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap   int      `koanf:"chunk_overlap" yaml:"chunk_overlap"`
	MaxBlobSize    int64    `koanf:"max_blob_size" yaml:"max_blob_size"`
	Progress       bool     `koanf:"progress" yaml:"progress"`
	IncludeRawText bool     `koanf:"include_raw_text" yaml:"include_raw_text"`
	Encodings      []string `koanf:"encodings" yaml:"encodings"`
	CacheSize      int      `koanf:"cache_size" yaml:"cache_size"`
}

// StoreConfig configures the chunk store.
type StoreConfig struct {
	// Path is the BadgerDB directory.
	Path string `koanf:"path" yaml:"path"`
	// Embed stores an embedding vector with every ingested chunk.
	Embed bool `koanf:"embed" yaml:"embed"`
}

// AIConfig configures the embedding service.
type AIConfig struct {
	EmbeddingHost  string `koanf:"embedding_host" yaml:"embedding_host"`
	EmbeddingModel string `koanf:"embedding_model" yaml:"embedding_model"`
	Token          string `koanf:"token" yaml:"-"`
	BatchSize      int    `koanf:"batch_size" yaml:"batch_size"`
}

// Default returns the built-in configuration.
func Default() Config {
	aiDefaults := ai.DefaultConfig()
	return Config{
		GitHub: GitHubConfig{
			BaseURL:     remote.DefaultBaseURL,
			MaxAttempts: remote.DefaultMaxAttempts,
		},
		Ingest: IngestConfig{
			MaxConcurrency: remote.DefaultMaxConcurrency,
			ChunkSize:      chunk.DefaultSize,
			ChunkOverlap:   chunk.DefaultOverlap,
			MaxBlobSize:    blob.DefaultMaxBlobSize,
			Progress:       true,
			Encodings:      append([]string(nil), blob.DefaultEncodings...),
			CacheSize:      blob.DefaultCacheSize,
		},
		Store: StoreConfig{
			Path: "repoingest.db",
		},
		AI: AIConfig{
			EmbeddingHost:  aiDefaults.EmbeddingHost,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			BatchSize:      aiDefaults.BatchSize,
		},
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.GitHub.BaseURL == "":
		return fmt.Errorf("%w: github.base_url is required", ErrInvalidConfig)
	case c.GitHub.MaxAttempts < 1:
		return fmt.Errorf("%w: github.max_attempts must be at least 1, got %d", ErrInvalidConfig, c.GitHub.MaxAttempts)
	case c.GitHub.RateLimitAttempts < 0:
		return fmt.Errorf("%w: github.rate_limit_attempts cannot be negative", ErrInvalidConfig)
	case c.GitHub.RequestsPerSecond < 0:
		return fmt.Errorf("%w: github.requests_per_second cannot be negative", ErrInvalidConfig)
	case c.Ingest.MaxConcurrency < 1:
		return fmt.Errorf("%w: ingest.max_concurrency must be at least 1, got %d", ErrInvalidConfig, c.Ingest.MaxConcurrency)
	case c.Ingest.MaxBlobSize < 1:
		return fmt.Errorf("%w: ingest.max_blob_size must be positive", ErrInvalidConfig)
	case c.Ingest.CacheSize < 0:
		return fmt.Errorf("%w: ingest.cache_size cannot be negative", ErrInvalidConfig)
	case len(c.Ingest.Encodings) == 0:
		return fmt.Errorf("%w: ingest.encodings needs at least one encoding", ErrInvalidConfig)
	}

	if _, err := chunk.New(c.Ingest.ChunkSize, c.Ingest.ChunkOverlap); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Store.Embed {
		if err := c.EmbeddingConfig().Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ClientOptions returns the remote client options for these settings.
func (c *Config) ClientOptions() []remote.Option {
	return []remote.Option{
		remote.WithToken(c.GitHub.Token),
		remote.WithBaseURL(c.GitHub.BaseURL),
		remote.WithMaxConcurrency(c.Ingest.MaxConcurrency),
		remote.WithRequestsPerSecond(c.GitHub.RequestsPerSecond),
		remote.WithMaxAttempts(c.GitHub.MaxAttempts),
		remote.WithRateLimitAttempts(c.GitHub.RateLimitAttempts),
	}
}

// FetcherOptions returns the blob fetcher options for these settings.
func (c *Config) FetcherOptions() []blob.Option {
	return []blob.Option{
		blob.WithMaxBlobSize(c.Ingest.MaxBlobSize),
		blob.WithEncodings(c.Ingest.Encodings...),
		blob.WithCacheSize(c.Ingest.CacheSize),
	}
}

// PipelineConfig returns the pipeline tunables.
func (c *Config) PipelineConfig() ingestion.Config {
	return ingestion.Config{
		MaxConcurrency: c.Ingest.MaxConcurrency,
		ChunkSize:      c.Ingest.ChunkSize,
		ChunkOverlap:   c.Ingest.ChunkOverlap,
		MaxBlobSize:    c.Ingest.MaxBlobSize,
	}
}

// EmbeddingConfig returns the embedding service settings.
func (c *Config) EmbeddingConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithToken(c.AI.Token),
		ai.WithBatchSize(c.AI.BatchSize),
	)
}
