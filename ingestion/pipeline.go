package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/repoingest/blob"
	"github.com/poiesic/repoingest/chunk"
	"github.com/poiesic/repoingest/core"
	"github.com/poiesic/repoingest/filter"
	"github.com/poiesic/repoingest/progress"
	"github.com/poiesic/repoingest/remote"
	"github.com/prometheus/client_golang/prometheus"
)

// fallbackBranch is used when the repository does not report a default branch.
const fallbackBranch = "main"

// RepositoryClient is the subset of the GitHub API a pipeline needs.
// *remote.Client satisfies it.
type RepositoryClient interface {
	GetRepository(ctx context.Context, repo string) (*github.Repository, error)
	ListTree(ctx context.Context, repo, ref string) ([]core.FileEntry, bool, error)
	blob.Source
}

var _ RepositoryClient = (*remote.Client)(nil)

// TextFetcher returns the decoded text of a blob. *blob.Fetcher satisfies it.
type TextFetcher interface {
	FetchText(ctx context.Context, repo, sha string, size int64) (string, error)
}

var _ TextFetcher = (*blob.Fetcher)(nil)

// Config holds the tunables of a pipeline. It is fixed once the pipeline is built.
type Config struct {
	MaxConcurrency int
	ChunkSize      int
	ChunkOverlap   int
	MaxBlobSize    int64
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: remote.DefaultMaxConcurrency,
		ChunkSize:      chunk.DefaultSize,
		ChunkOverlap:   chunk.DefaultOverlap,
		MaxBlobSize:    blob.DefaultMaxBlobSize,
	}
}

// Pipeline ingests repositories: it lists, filters, fetches, chunks and
// hands chunks to a sink, one file per worker.
type Pipeline struct {
	client   RepositoryClient
	fetcher  TextFetcher
	chunker  *chunk.Chunker
	filter   *filter.Filter
	pool     *ants.Pool
	config   Config
	progress io.Writer
	registry prometheus.Registerer
	metrics  *metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConfig replaces all tunables at once.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) error {
		p.config = cfg
		return nil
	}
}

// WithConcurrency sets how many files are processed at once.
// Default is 15.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		p.config.MaxConcurrency = n
		return nil
	}
}

// WithChunking sets the chunk size and overlap in characters.
// Defaults are 1200 and 200.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		p.config.ChunkSize = size
		p.config.ChunkOverlap = overlap
		return nil
	}
}

// WithMaxBlobSize sets the largest blob fetched, in bytes.
// Ignored when WithFetcher is used.
func WithMaxBlobSize(n int64) Option {
	return func(p *Pipeline) error {
		p.config.MaxBlobSize = n
		return nil
	}
}

// WithFetcher replaces the blob fetcher built from the client.
func WithFetcher(f TextFetcher) Option {
	return func(p *Pipeline) error {
		p.fetcher = f
		return nil
	}
}

// WithProgress writes live progress to w. Nil disables it, which is the default.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithMetrics registers the pipeline collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(p *Pipeline) error {
		p.registry = reg
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline reading from client.
// Release must be called when the pipeline is no longer needed.
func NewPipeline(client RepositoryClient, opts ...Option) (*Pipeline, error) {
	if client == nil {
		return nil, ErrClientRequired
	}

	p := &Pipeline{
		client: client,
		filter: filter.New(),
		config: DefaultConfig(),
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	if p.config.MaxConcurrency < 1 {
		return nil, fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, p.config.MaxConcurrency)
	}

	chunker, err := chunk.New(p.config.ChunkSize, p.config.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	p.chunker = chunker

	if p.fetcher == nil {
		fetcher, err := blob.NewFetcher(client,
			blob.WithMaxBlobSize(p.config.MaxBlobSize),
			blob.WithLogger(p.logger))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		p.fetcher = fetcher
	}

	m, err := newMetrics(p.registry)
	if err != nil {
		return nil, err
	}
	p.metrics = m

	pool, err := ants.NewPool(p.config.MaxConcurrency)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	return p, nil
}

// Config returns the settings the pipeline was built with.
func (p *Pipeline) Config() Config { return p.config }

// Files lists the files a run of repo at branch would ingest, without
// fetching any content. An empty branch means the default branch, which is
// returned alongside the files.
func (p *Pipeline) Files(ctx context.Context, repo, branch string) ([]core.FileEntry, string, error) {
	if _, _, err := core.SplitRepo(repo); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidRepo, err)
	}
	info, err := p.client.GetRepository(ctx, repo)
	if err != nil {
		return nil, "", err
	}
	branch = resolveBranch(branch, info)
	entries, _, err := p.client.ListTree(ctx, repo, branch)
	if err != nil {
		return nil, branch, err
	}
	return p.filter.Apply(entries), branch, nil
}

// Run ingests repo at branch into sink. An empty branch means the
// repository's default branch. Chunk text is copied into the metadata under
// "text" when includeRawText is set.
//
// Run only returns an error when its arguments are invalid. Failures
// reaching the repository are reported in the report's Error field; per-file
// problems land in its Skipped and Failed lists.
func (p *Pipeline) Run(ctx context.Context, repo, branch string, sink Sink, includeRawText bool) (*core.IngestionReport, error) {
	if err := checkSink(sink); err != nil {
		return nil, err
	}
	if _, _, err := core.SplitRepo(repo); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRepo, err)
	}

	report := core.NewReport(uuid.NewString(), repo, branch)
	report.StartedAt = p.now()
	logger := p.logger.With("run_id", report.RunID, "repo", repo)
	defer func() {
		report.FinishedAt = p.now()
		p.metrics.observeRun(report)
	}()

	info, err := p.client.GetRepository(ctx, repo)
	if err != nil {
		logger.Error("repository unreachable", "err", err)
		report.Error = fmt.Sprintf("repository unreachable: %v", err)
		return report, nil
	}
	branch = resolveBranch(branch, info)
	report.Branch = branch

	entries, truncated, err := p.client.ListTree(ctx, repo, branch)
	if err != nil {
		logger.Error("error listing repository tree", "branch", branch, "err", err)
		report.Error = fmt.Sprintf("listing tree: %v", err)
		return report, nil
	}
	if truncated {
		logger.Warn("tree listing truncated, some files will be missed", "branch", branch)
	}

	files := p.filter.Apply(entries)
	logger.Info("starting ingestion", "branch", branch, "entries", len(entries), "files", len(files))
	if len(files) == 0 {
		return report, nil
	}

	proc := &fileProcessor{
		repo:           repo,
		branch:         branch,
		fetcher:        p.fetcher,
		chunker:        p.chunker,
		sink:           sink,
		includeRawText: includeRawText,
		logger:         logger,
	}
	report.Reduce(p.processAll(ctx, proc, files))

	logger.Info("ingestion finished",
		"files", report.TotalFiles,
		"chunks", report.TotalChunks,
		"skipped", report.SkippedFiles,
		"failed", report.FailedFiles)
	return report, nil
}

// processAll runs every file through proc on the worker pool. Each task
// writes only its own slot, and the slice is read after all tasks finish.
func (p *Pipeline) processAll(ctx context.Context, proc *fileProcessor, files []core.FileEntry) []core.FileOutcome {
	outcomes := make([]core.FileOutcome, len(files))

	var tracker *progress.Tracker
	if p.progress != nil {
		tracker = progress.NewTracker(p.progress, len(files), max(1, len(files)/100), "files")
		tracker.Start()
		defer tracker.Finish()
	}

	var wg sync.WaitGroup
	for i, entry := range files {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = proc.process(ctx, entry)
			p.metrics.observeFile(outcomes[i])
			if tracker != nil {
				tracker.Increment(1)
			}
		})
		if err != nil {
			wg.Done()
			outcomes[i] = core.Failed(entry.Path, fmt.Sprintf("scheduling: %v", err))
			p.metrics.observeFile(outcomes[i])
		}
	}
	wg.Wait()

	return outcomes
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

func resolveBranch(branch string, info *github.Repository) string {
	if branch != "" {
		return branch
	}
	if b := info.GetDefaultBranch(); b != "" {
		return b
	}
	return fallbackBranch
}
