package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/repoingest/blob"
	"github.com/poiesic/repoingest/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, remote.DefaultBaseURL, cfg.GitHub.BaseURL)
	assert.Equal(t, 6, cfg.GitHub.MaxAttempts)
	assert.Zero(t, cfg.GitHub.RateLimitAttempts)
	assert.Equal(t, 15, cfg.Ingest.MaxConcurrency)
	assert.Equal(t, 1200, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, int64(2_000_000), cfg.Ingest.MaxBlobSize)
	assert.True(t, cfg.Ingest.Progress)
	assert.False(t, cfg.Ingest.IncludeRawText)
	assert.Equal(t, blob.DefaultEncodings, cfg.Ingest.Encodings)
	assert.False(t, cfg.Store.Embed)
	require.NoError(t, cfg.Validate())
}

func TestDefault_EncodingsAreCopied(t *testing.T) {
	cfg := Default()
	cfg.Ingest.Encodings[0] = "changed"
	assert.Equal(t, "utf-8", blob.DefaultEncodings[0])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.GitHub.BaseURL = "" }},
		{"zero attempts", func(c *Config) { c.GitHub.MaxAttempts = 0 }},
		{"negative rate limit attempts", func(c *Config) { c.GitHub.RateLimitAttempts = -1 }},
		{"negative rps", func(c *Config) { c.GitHub.RequestsPerSecond = -1 }},
		{"zero concurrency", func(c *Config) { c.Ingest.MaxConcurrency = 0 }},
		{"zero blob size", func(c *Config) { c.Ingest.MaxBlobSize = 0 }},
		{"negative cache", func(c *Config) { c.Ingest.CacheSize = -1 }},
		{"no encodings", func(c *Config) { c.Ingest.Encodings = nil }},
		{"overlap not below size", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }},
		{"embed without model", func(c *Config) {
			c.Store.Embed = true
			c.AI.EmbeddingModel = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	t.Setenv(TokenEnv, "")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestParse_YAML(t *testing.T) {
	t.Setenv(TokenEnv, "")

	content := []byte(`
github:
  base_url: https://ghe.example.com/api/v3
  requests_per_second: 2.5
  rate_limit_attempts: 4
ingest:
  max_concurrency: 4
  chunk_size: 500
  chunk_overlap: 50
  progress: false
  encodings: [windows-1252]
store:
  path: /var/lib/repoingest
  embed: true
ai:
  embedding_model: nomic-embed-text
`)

	cfg, err := Parse(content)
	require.NoError(t, err)

	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.GitHub.BaseURL)
	assert.InDelta(t, 2.5, cfg.GitHub.RequestsPerSecond, 0.001)
	assert.Equal(t, 4, cfg.GitHub.RateLimitAttempts)
	assert.Equal(t, 6, cfg.GitHub.MaxAttempts, "unset keys keep defaults")
	assert.Equal(t, 4, cfg.Ingest.MaxConcurrency)
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, 50, cfg.Ingest.ChunkOverlap)
	assert.False(t, cfg.Ingest.Progress)
	assert.Equal(t, []string{"windows-1252"}, cfg.Ingest.Encodings)
	assert.Equal(t, "/var/lib/repoingest", cfg.Store.Path)
	assert.True(t, cfg.Store.Embed)
	assert.Equal(t, "nomic-embed-text", cfg.AI.EmbeddingModel)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.EmbeddingHost)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("github: [unterminated"))
	assert.Error(t, err)
}

func TestParse_EnvOverridesFile(t *testing.T) {
	t.Setenv("REPOINGEST_INGEST_CHUNK_SIZE", "800")
	t.Setenv("REPOINGEST_GITHUB_TOKEN", "from-env")
	t.Setenv("REPOINGEST_STORE_PATH", "/tmp/chunks")
	t.Setenv(TokenEnv, "fallback")

	cfg, err := Parse([]byte("ingest:\n  chunk_size: 300\n  chunk_overlap: 10\n"))
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Ingest.ChunkSize)
	assert.Equal(t, 10, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, "from-env", cfg.GitHub.Token)
	assert.Equal(t, "/tmp/chunks", cfg.Store.Path)
}

func TestParse_TokenFallback(t *testing.T) {
	t.Setenv(TokenEnv, "ghp_fallback")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "ghp_fallback", cfg.GitHub.Token)
}

func TestParse_InvalidResult(t *testing.T) {
	_, err := Parse([]byte("ingest:\n  max_concurrency: 0\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad(t *testing.T) {
	t.Setenv(TokenEnv, "")

	t.Run("empty path uses defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 1200, cfg.Ingest.ChunkSize)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "repoingest.yaml")
		require.NoError(t, os.WriteFile(path, []byte("ingest:\n  max_concurrency: 3\n"), 0600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Ingest.MaxConcurrency)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, ErrConfigFile)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.ErrorIs(t, err, ErrConfigFile)
	})

	t.Run("too large", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "big.yaml")
		require.NoError(t, os.WriteFile(path, make([]byte, maxConfigFileSize+1), 0600))

		_, err := Load(path)
		assert.ErrorIs(t, err, ErrConfigFile)
	})
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "github.base_url", envKey("REPOINGEST_GITHUB_BASE_URL"))
	assert.Equal(t, "ingest.max_blob_size", envKey("REPOINGEST_INGEST_MAX_BLOB_SIZE"))
	assert.Equal(t, "ai.embedding_host", envKey("REPOINGEST_AI_EMBEDDING_HOST"))
	assert.Equal(t, "debug", envKey("REPOINGEST_DEBUG"))
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.GitHub.Token = "tok"
	cfg.AI.BatchSize = 8

	client, err := remote.NewClient(cfg.ClientOptions()...)
	require.NoError(t, err)
	require.NotNil(t, client)

	fetcher, err := blob.NewFetcher(client, cfg.FetcherOptions()...)
	require.NoError(t, err)
	assert.Equal(t, cfg.Ingest.MaxBlobSize, fetcher.MaxBlobSize())

	pc := cfg.PipelineConfig()
	assert.Equal(t, cfg.Ingest.MaxConcurrency, pc.MaxConcurrency)
	assert.Equal(t, cfg.Ingest.ChunkSize, pc.ChunkSize)

	ac := cfg.EmbeddingConfig()
	assert.Equal(t, 8, ac.BatchSize)
	assert.Equal(t, cfg.AI.EmbeddingModel, ac.EmbeddingModel)
}
