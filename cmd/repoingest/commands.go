package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/repoingest"
	"github.com/poiesic/repoingest/blob"
	"github.com/poiesic/repoingest/config"
	"github.com/poiesic/repoingest/ingestion"
	"github.com/poiesic/repoingest/reembed"
	"github.com/poiesic/repoingest/remote"
	"github.com/poiesic/repoingest/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func ingestCommand() *cli.Command {
	flags := []cli.Flag{
		dbFlag(),
		&cli.BoolFlag{
			Name:  "embed",
			Usage: "Store an embedding vector with every chunk",
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Chunk size in characters",
		},
		&cli.IntFlag{
			Name:  "chunk-overlap",
			Usage: "Characters shared by consecutive chunks",
		},
		&cli.Int64Flag{
			Name:  "max-blob-size",
			Usage: "Skip files larger than this many bytes",
		},
		&cli.BoolFlag{
			Name:  "include-raw-text",
			Usage: "Copy chunk text into the chunk metadata",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Disable live progress output",
		},
		&cli.BoolFlag{
			Name:  "replace",
			Usage: "Delete the repository's stored chunks before ingesting",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format (json, yaml)",
			Value:   "json",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Write run metrics in Prometheus text format to this file",
		},
	}
	flags = append(flags, repoFlags()...)
	flags = append(flags, embeddingFlags()...)

	return &cli.Command{
		Name:      "ingest",
		Usage:     "Ingest a repository and print the run report",
		ArgsUsage: "owner/name",
		Flags:     flags,
		Action:    runIngest,
	}
}

func runIngest(c *cli.Context) error {
	repo := c.Args().First()
	if repo == "" {
		return fmt.Errorf("repository is required")
	}
	format := strings.ToLower(c.String("format"))
	if err := checkFormat(format); err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg, cfg.Store.Embed)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Bool("replace") {
		deleted, err := db.ChunkRepository().DeleteRepository(c.Context, repo)
		if err != nil {
			return fmt.Errorf("failed to delete stored chunks: %w", err)
		}
		slog.Info("removed stored chunks", "repo", repo, "chunks", deleted)
	}

	registry := prometheus.NewRegistry()
	pipeline, err := newPipeline(c, cfg, db, ingestion.WithMetrics(registry))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	report, err := pipeline.Run(c.Context, repo, c.String("branch"), db.Sink(), cfg.Ingest.IncludeRawText)
	if err != nil {
		return err
	}

	if err := writeReport(c.App.Writer, report, format); err != nil {
		return err
	}
	if path := c.String("metrics-file"); path != "" {
		if err := prometheus.WriteToTextfile(path, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if report.Error != "" {
		return cli.Exit(report.Error, 1)
	}
	if report.Degraded() {
		slog.Warn("some files failed", "repo", repo, "failed", report.FailedFiles)
	}
	return nil
}

func filesCommand() *cli.Command {
	return &cli.Command{
		Name:      "files",
		Usage:     "List the files an ingest would process, without fetching them",
		ArgsUsage: "owner/name",
		Flags:     repoFlags(),
		Action: func(c *cli.Context) error {
			repo := c.Args().First()
			if repo == "" {
				return fmt.Errorf("repository is required")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			client, err := remote.NewClient(cfg.ClientOptions()...)
			if err != nil {
				return err
			}
			pipeline, err := ingestion.NewPipeline(client, ingestion.WithConfig(cfg.PipelineConfig()))
			if err != nil {
				return err
			}
			defer pipeline.Release()

			files, branch, err := pipeline.Files(c.Context, repo, c.String("branch"))
			if err != nil {
				return err
			}

			var total int64
			for _, f := range files {
				fmt.Fprintf(c.App.Writer, "%10d  %s\n", f.Size, f.Path)
				total += f.Size
			}
			fmt.Fprintf(c.App.Writer, "%d files, %d bytes on %s\n", len(files), total, branch)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	flags := []cli.Flag{
		dbFlag(),
		&cli.IntFlag{
			Name:    "max-hits",
			Aliases: []string{"n"},
			Usage:   "Maximum number of results",
			Value:   10,
		},
		&cli.Float64Flag{
			Name:  "min-similarity",
			Usage: "Minimum cosine similarity of a hit",
			Value: float64(search.DefaultMinSimilarity),
		},
	}
	flags = append(flags, embeddingFlags()...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search stored chunks",
		ArgsUsage: "query...",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("query is required")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			db, err := openDatabase(cfg, true)
			if err != nil {
				return err
			}
			defer db.Close()

			searcher, err := db.NewSearcher(search.WithMinSimilarity(float32(c.Float64("min-similarity"))))
			if err != nil {
				return err
			}
			results, err := searcher.FindSimilar(c.Context, query, c.Int("max-hits"))
			if err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(results))
			for i, hit := range results {
				fmt.Fprintf(c.App.Writer, "%d: %s [%0.3f]\n    %s\n", i, hit.Chunk.StableID, hit.Score, preview(hit.Chunk.Text))
			}
			return nil
		},
	}
}

func reembedCommand() *cli.Command {
	flags := []cli.Flag{
		dbFlag(),
		&cli.StringFlag{
			Name:  "repo",
			Usage: "Only reembed chunks of this owner/name",
		},
		&cli.BoolFlag{
			Name:  "only-missing",
			Usage: "Skip chunks that already have a vector",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of chunks to process in each batch",
			Value: reembed.DefaultBatchSize,
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N chunks",
			Value: 100,
		},
	}
	flags = append(flags, embeddingFlags()...)
	flags = append(flags, retryFlags()...)

	return &cli.Command{
		Name:   "reembed",
		Usage:  "Reembed stored chunks with the configured embedding model",
		Flags:  flags,
		Action: runReembed,
	}
}

func runReembed(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Repository:     c.String("repo"),
		OnlyMissing:    c.Bool("only-missing"),
	}

	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}
	if reembedConfig.RetryDelay <= 0 {
		return fmt.Errorf("retry-delay must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg, true)
	if err != nil {
		return err
	}
	defer db.Close()

	reembedder, err := db.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}
	processed, err := reembedder.Run(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed after %d chunks: %w", processed, err)
	}
	return nil
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove every stored chunk of a repository",
		ArgsUsage: "owner/name",
		Flags:     []cli.Flag{dbFlag()},
		Action: func(c *cli.Context) error {
			repo := c.Args().First()
			if repo == "" {
				return fmt.Errorf("repository is required")
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			db, err := openDatabase(cfg, false)
			if err != nil {
				return err
			}
			defer db.Close()

			deleted, err := db.ChunkRepository().DeleteRepository(c.Context, repo)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Deleted %d chunks of %s\n", deleted, repo)
			return nil
		},
	}
}

// openDatabase opens the chunk store, with embeddings when embed is set.
func openDatabase(cfg *config.Config, embed bool) (*repoingest.Database, error) {
	var opts []repoingest.DatabaseOption
	if embed {
		aiConfig := cfg.EmbeddingConfig()
		if err := aiConfig.Validate(); err != nil {
			return nil, fmt.Errorf("invalid AI configuration: %w", err)
		}
		opts = append(opts, repoingest.WithAIConfig(aiConfig))
	}
	db, err := repoingest.NewDatabase(cfg.Store.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func newPipeline(c *cli.Context, cfg *config.Config, db *repoingest.Database, extra ...ingestion.Option) (*ingestion.Pipeline, error) {
	client, err := remote.NewClient(cfg.ClientOptions()...)
	if err != nil {
		return nil, err
	}
	fetcher, err := blob.NewFetcher(client, cfg.FetcherOptions()...)
	if err != nil {
		return nil, err
	}

	opts := []ingestion.Option{
		ingestion.WithConfig(cfg.PipelineConfig()),
		ingestion.WithFetcher(fetcher),
	}
	if cfg.Ingest.Progress {
		opts = append(opts, ingestion.WithProgress(c.App.ErrWriter))
	}
	return db.NewPipeline(client, append(opts, extra...)...)
}

// preview returns the first non-empty line of text, shortened for display.
func preview(text string) string {
	const maxLen = 100
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > maxLen {
			return string(r[:maxLen]) + "..."
		}
		return line
	}
	return ""
}
