package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored chunks.
// It is derived from a chunk's stable identifier using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// StableID builds the deterministic identifier of a chunk from its repository,
// path and index. Re-ingesting the same file yields the same identifiers, so
// sinks can upsert.
func StableID(repo, path string, chunkIndex int) string {
	return repo + ":" + path + "#" + strconv.Itoa(chunkIndex)
}

// EntryKind is the type of a tree entry.
type EntryKind string

const (
	// KindBlob is a file.
	KindBlob EntryKind = "blob"
	// KindTree is a directory.
	KindTree EntryKind = "tree"
	// KindCommit is a submodule reference.
	KindCommit EntryKind = "commit"
)

// FileEntry is a single entry from a recursive tree listing.
type FileEntry struct {
	Path string // Repository-relative, slash separated
	SHA  string // Content address of the blob
	Size int64
	Kind EntryKind
}

// Metadata keys attached to every chunk handed to a sink.
const (
	MetaRepo       = "repo"
	MetaPath       = "path"
	MetaChunkIndex = "chunk_index"
	MetaSHA        = "sha"
	MetaBranch     = "branch"
	MetaText       = "text"
)

// ChunkRecord is one chunk of a file's decoded text, ready for a sink.
type ChunkRecord struct {
	Repo       string
	Path       string
	ChunkIndex int
	Text       string
	StableID   string
	Metadata   map[string]any
}

// NewChunkRecord builds a ChunkRecord with its stable ID and base metadata.
// The raw text is copied into the metadata only when includeText is set.
func NewChunkRecord(entry FileEntry, repo, branch string, index int, text string, includeText bool) *ChunkRecord {
	metadata := map[string]any{
		MetaRepo:       repo,
		MetaPath:       entry.Path,
		MetaChunkIndex: index,
		MetaSHA:        entry.SHA,
		MetaBranch:     branch,
	}
	if includeText {
		metadata[MetaText] = text
	}
	return &ChunkRecord{
		Repo:       repo,
		Path:       entry.Path,
		ChunkIndex: index,
		Text:       text,
		StableID:   StableID(repo, entry.Path, index),
		Metadata:   metadata,
	}
}

// FileStatus is the terminal state of one file in a run.
type FileStatus int

const (
	// StatusSuccess means every chunk of the file reached the sink.
	StatusSuccess FileStatus = iota + 1
	// StatusSkipped means the file was deliberately not ingested.
	StatusSkipped
	// StatusFailed means processing the file raised an error.
	StatusFailed
)

func (s FileStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileOutcome records what happened to one filtered file.
type FileOutcome struct {
	Path       string     `json:"path" yaml:"path"`
	ChunkCount int        `json:"chunk_count" yaml:"chunk_count"`
	StoredIDs  []string   `json:"stored_ids" yaml:"stored_ids"`
	Status     FileStatus `json:"-" yaml:"-"`
	Reason     string     `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Succeeded builds a success outcome.
func Succeeded(path string, ids []string) FileOutcome {
	return FileOutcome{Path: path, ChunkCount: len(ids), StoredIDs: ids, Status: StatusSuccess}
}

// Skipped builds a skip outcome.
func Skipped(path, reason string) FileOutcome {
	return FileOutcome{Path: path, Status: StatusSkipped, Reason: reason}
}

// Failed builds a failure outcome.
func Failed(path, reason string) FileOutcome {
	return FileOutcome{Path: path, Status: StatusFailed, Reason: reason}
}

// IngestionReport summarizes a single ingestion run.
type IngestionReport struct {
	RunID        string        `json:"run_id" yaml:"run_id"`
	Repo         string        `json:"repo" yaml:"repo"`
	Branch       string        `json:"branch" yaml:"branch"`
	Files        []FileOutcome `json:"files" yaml:"files"`
	Skipped      []FileOutcome `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Failed       []FileOutcome `json:"failed,omitempty" yaml:"failed,omitempty"`
	TotalFiles   int           `json:"total_files" yaml:"total_files"`
	TotalChunks  int           `json:"total_chunks" yaml:"total_chunks"`
	FailedFiles  int           `json:"failed_files" yaml:"failed_files"`
	SkippedFiles int           `json:"skipped_files" yaml:"skipped_files"`
	Error        string        `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time     `json:"finished_at" yaml:"finished_at"`
}

// StoredChunk is a chunk as persisted by the chunk store.
type StoredChunk struct {
	Id         ID
	StableID   string
	Repo       string
	Path       string
	ChunkIndex int
	Text       string
	Metadata   map[string]string
	Vector     []float32 // Embedding vector (empty when no embedder is configured)
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// SearchResult represents a search result with the full chunk and relevance score.
type SearchResult struct {
	Chunk *StoredChunk
	Score float32
}
