package blob

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-github/v57/github"
	"github.com/poiesic/repoingest/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	blobs map[string]*github.Blob
	err   error
	calls int
}

func (s *fakeSource) GetBlob(_ context.Context, _, sha string) (*github.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	b, ok := s.blobs[sha]
	if !ok {
		return nil, fmt.Errorf("%w: %s", remote.ErrResourceNotFound, sha)
	}
	return b, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// wrapped encodes raw as base64 split into 60 character lines, like the API does.
func wrapped(raw []byte) string {
	enc := base64.StdEncoding.EncodeToString(raw)
	var sb strings.Builder
	for len(enc) > 60 {
		sb.WriteString(enc[:60])
		sb.WriteByte('\n')
		enc = enc[60:]
	}
	sb.WriteString(enc)
	sb.WriteByte('\n')
	return sb.String()
}

func base64Blob(raw []byte) *github.Blob {
	return &github.Blob{Content: github.String(wrapped(raw)), Encoding: github.String("base64")}
}

func newFetcher(t *testing.T, src Source, opts ...Option) *Fetcher {
	t.Helper()
	f, err := NewFetcher(src, opts...)
	require.NoError(t, err)
	return f
}

func TestFetchText_Base64UTF8(t *testing.T) {
	text := strings.Repeat("package main\n\nfunc main() {}\n", 10)
	src := &fakeSource{blobs: map[string]*github.Blob{"a": base64Blob([]byte(text))}}
	f := newFetcher(t, src)

	got, err := f.FetchText(context.Background(), "o/r", "a", int64(len(text)))
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestFetchText_TooLargeMakesNoCall(t *testing.T) {
	src := &fakeSource{blobs: map[string]*github.Blob{"a": base64Blob([]byte("hi"))}}
	f := newFetcher(t, src)

	_, err := f.FetchText(context.Background(), "o/r", "a", DefaultMaxBlobSize+1)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, src.callCount())

	_, err = f.FetchText(context.Background(), "o/r", "a", DefaultMaxBlobSize)
	require.NoError(t, err)
	assert.Equal(t, 1, src.callCount())
}

func TestFetchText_CustomSizeCap(t *testing.T) {
	src := &fakeSource{blobs: map[string]*github.Blob{}}
	f := newFetcher(t, src, WithMaxBlobSize(10))

	_, err := f.FetchText(context.Background(), "o/r", "a", 11)
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, src.callCount())
	assert.Equal(t, int64(10), f.MaxBlobSize())
}

func TestFetchText_NULMeansBinary(t *testing.T) {
	raw := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	src := &fakeSource{blobs: map[string]*github.Blob{"img": base64Blob(raw)}}
	f := newFetcher(t, src)

	_, err := f.FetchText(context.Background(), "o/r", "img", int64(len(raw)))
	assert.ErrorIs(t, err, ErrBinary)
}

func TestFetchText_NULPastSniffWindowIsText(t *testing.T) {
	raw := append([]byte(strings.Repeat("a", binarySniffLen)), 0, 'b')
	src := &fakeSource{blobs: map[string]*github.Blob{"a": base64Blob(raw)}}
	f := newFetcher(t, src)

	got, err := f.FetchText(context.Background(), "o/r", "a", int64(len(raw)))
	require.NoError(t, err)
	assert.Equal(t, string(raw), got)
}

func TestFetchText_Latin1Fallback(t *testing.T) {
	raw := []byte{'c', 'a', 'f', 0xE9}
	src := &fakeSource{blobs: map[string]*github.Blob{"a": base64Blob(raw)}}
	f := newFetcher(t, src)

	got, err := f.FetchText(context.Background(), "o/r", "a", 4)
	require.NoError(t, err)
	assert.Equal(t, "café", got)
}

func TestFetchText_LossyWhenNoCandidateFits(t *testing.T) {
	raw := []byte{'c', 'a', 'f', 0xE9}
	src := &fakeSource{blobs: map[string]*github.Blob{"a": base64Blob(raw)}}
	f := newFetcher(t, src, WithEncodings("utf-8"))

	got, err := f.FetchText(context.Background(), "o/r", "a", 4)
	require.NoError(t, err)
	assert.Equal(t, "caf\uFFFD", got)
}

func TestFetchText_UnpaddedBase64(t *testing.T) {
	src := &fakeSource{blobs: map[string]*github.Blob{
		"a": {Content: github.String("aGk"), Encoding: github.String("base64")},
	}}
	f := newFetcher(t, src)

	got, err := f.FetchText(context.Background(), "o/r", "a", 2)
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestFetchText_InvalidBase64(t *testing.T) {
	src := &fakeSource{blobs: map[string]*github.Blob{
		"a": {Content: github.String("!!!!"), Encoding: github.String("base64")},
	}}
	f := newFetcher(t, src)

	_, err := f.FetchText(context.Background(), "o/r", "a", 3)
	assert.ErrorIs(t, err, ErrDecodeFailure)
}

func TestFetchText_NonBase64Verbatim(t *testing.T) {
	src := &fakeSource{blobs: map[string]*github.Blob{
		"plain": {Content: github.String("already text"), Encoding: github.String("utf-8")},
		"empty": {Content: github.String(""), Encoding: github.String("utf-8")},
	}}
	f := newFetcher(t, src)

	got, err := f.FetchText(context.Background(), "o/r", "plain", 12)
	require.NoError(t, err)
	assert.Equal(t, "already text", got)

	_, err = f.FetchText(context.Background(), "o/r", "empty", 0)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestFetchText_SourceErrorsPassThrough(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("%w: boom", remote.ErrRequestFailed)}
	f := newFetcher(t, src)

	_, err := f.FetchText(context.Background(), "o/r", "a", 10)
	require.ErrorIs(t, err, remote.ErrRequestFailed)
	assert.NotErrorIs(t, err, ErrDecodeFailure)

	_, err = newFetcher(t, &fakeSource{}).FetchText(context.Background(), "o/r", "missing", 10)
	assert.ErrorIs(t, err, remote.ErrResourceNotFound)
}

// gatedSource holds every GetBlob call until release is closed.
type gatedSource struct {
	fakeSource
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedSource) GetBlob(ctx context.Context, repo, sha string) (*github.Blob, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.fakeSource.GetBlob(ctx, repo, sha)
}

func TestFetchText_ConcurrentCallsShareFetch(t *testing.T) {
	src := &gatedSource{
		fakeSource: fakeSource{blobs: map[string]*github.Blob{"a": base64Blob([]byte("vendored"))}},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	f := newFetcher(t, src)

	const workers = 15
	var wg sync.WaitGroup
	results := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.FetchText(context.Background(), "o/r", "a", 8)
		}(i)
	}

	<-src.entered
	close(src.release)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "vendored", results[i])
	}
	assert.Equal(t, 1, src.callCount())
}

func TestFetchText_CachesBySHA(t *testing.T) {
	src := &fakeSource{blobs: map[string]*github.Blob{"a": base64Blob([]byte("shared"))}}
	f := newFetcher(t, src)

	for i := 0; i < 3; i++ {
		got, err := f.FetchText(context.Background(), "o/r", "a", 6)
		require.NoError(t, err)
		assert.Equal(t, "shared", got)
	}
	assert.Equal(t, 1, src.callCount())

	uncached := &fakeSource{blobs: src.blobs}
	nf := newFetcher(t, uncached, WithCacheSize(0))
	for i := 0; i < 3; i++ {
		_, err := nf.FetchText(context.Background(), "o/r", "a", 6)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, uncached.callCount())
}

func TestNewFetcher_Validation(t *testing.T) {
	_, err := NewFetcher(nil)
	assert.ErrorIs(t, err, ErrSourceRequired)

	_, err = NewFetcher(&fakeSource{}, WithEncodings("klingon-8"))
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)

	_, err = NewFetcher(&fakeSource{}, WithEncodings())
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)

	_, err = NewFetcher(&fakeSource{}, WithMaxBlobSize(0))
	assert.Error(t, err)
}

func TestDecodeContent_RecoversPanics(t *testing.T) {
	// A candidate list with no entries panics on the lossy fallback index.
	_, err := decodeContent(base64.StdEncoding.EncodeToString([]byte{0xff}), "base64", nil)
	assert.ErrorIs(t, err, ErrDecodeFailure)
}
