package blob

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v57/github"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/poiesic/repoingest/remote"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxBlobSize is the largest blob fetched, in bytes.
	DefaultMaxBlobSize = 2_000_000
	// DefaultCacheSize is the number of decoded blobs kept in memory.
	DefaultCacheSize = 256
)

// Source fetches raw blobs. *remote.Client satisfies it.
type Source interface {
	GetBlob(ctx context.Context, repo, sha string) (*github.Blob, error)
}

var _ Source = (*remote.Client)(nil)

// Fetcher retrieves blobs and decodes them to text.
// It is safe for concurrent use.
type Fetcher struct {
	source     Source
	maxSize    int64
	encodings  []string
	candidates []candidate
	cacheSize  int
	cache      *lru.Cache[string, string]
	inflight   singleflight.Group
	logger     *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher) error

// WithMaxBlobSize sets the size cap in bytes.
// Default is DefaultMaxBlobSize.
func WithMaxBlobSize(n int64) Option {
	return func(f *Fetcher) error {
		if n < 1 {
			return fmt.Errorf("max blob size must be positive, got %d", n)
		}
		f.maxSize = n
		return nil
	}
}

// WithEncodings sets the candidate encodings, tried in order.
// Names are IANA charset names.
func WithEncodings(names ...string) Option {
	return func(f *Fetcher) error {
		f.encodings = names
		return nil
	}
}

// WithCacheSize sets how many decoded blobs are cached by SHA. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(f *Fetcher) error {
		if n < 0 {
			return fmt.Errorf("cache size cannot be negative, got %d", n)
		}
		f.cacheSize = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// NewFetcher creates a Fetcher reading from source.
func NewFetcher(source Source, opts ...Option) (*Fetcher, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	f := &Fetcher{
		source:    source,
		maxSize:   DefaultMaxBlobSize,
		encodings: DefaultEncodings,
		cacheSize: DefaultCacheSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}

	candidates, err := resolveEncodings(f.encodings)
	if err != nil {
		return nil, err
	}
	f.candidates = candidates

	if f.cacheSize > 0 {
		cache, err := lru.New[string, string](f.cacheSize)
		if err != nil {
			return nil, err
		}
		f.cache = cache
	}
	f.logger = f.logger.With("component", "blob")
	return f, nil
}

// MaxBlobSize returns the size cap in bytes.
func (f *Fetcher) MaxBlobSize() int64 { return f.maxSize }

// FetchText returns the decoded text of a blob.
//
// A listed size above the cap returns ErrTooLarge without touching the
// network. Source errors come back unchanged. ErrBinary, ErrDecodeFailure and
// ErrEmpty describe content that is not ingestible text.
func (f *Fetcher) FetchText(ctx context.Context, repo, sha string, size int64) (string, error) {
	if size > f.maxSize {
		return "", fmt.Errorf("%w: %d bytes, cap %d", ErrTooLarge, size, f.maxSize)
	}
	if f.cache != nil {
		if text, ok := f.cache.Get(sha); ok {
			return text, nil
		}
	}

	// Concurrent requests for one SHA share a single fetch
	v, err, shared := f.inflight.Do(sha, func() (any, error) {
		return f.fetch(ctx, repo, sha)
	})
	if err != nil {
		return "", err
	}
	if shared {
		f.logger.Debug("blob fetch shared", "repo", repo, "sha", sha)
	}
	return v.(string), nil
}

func (f *Fetcher) fetch(ctx context.Context, repo, sha string) (string, error) {
	if f.cache != nil {
		if text, ok := f.cache.Get(sha); ok {
			return text, nil
		}
	}

	b, err := f.source.GetBlob(ctx, repo, sha)
	if err != nil {
		return "", err
	}
	if b == nil {
		return "", ErrEmpty
	}

	text, err := decodeContent(b.GetContent(), b.GetEncoding(), f.candidates)
	if err != nil {
		f.logger.Debug("blob not decodable", "repo", repo, "sha", sha, "err", err)
		return "", err
	}

	if f.cache != nil {
		f.cache.Add(sha, text)
	}
	return text, nil
}
