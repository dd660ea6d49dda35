package storage

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/repoingest/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalChunk serializes a StoredChunk to bytes.
func MarshalChunk(chunk *core.StoredChunk) []byte {
	buf := make([]byte, StoredChunkMUS.Size(*chunk))
	StoredChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a StoredChunk from bytes.
func UnmarshalChunk(data []byte) (*core.StoredChunk, error) {
	chunk, _, err := StoredChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// StoredChunkMUS is the MUS serializer for StoredChunk.
//
// Layout: id, stable id, repo, path, index, text, metadata (count then
// key/value pairs in key order), vector (count then float bits), inserted
// and updated times as Unix microseconds with 0 for the zero time.
var StoredChunkMUS = storedChunkMUS{}

type storedChunkMUS struct{}

func (storedChunkMUS) Marshal(c core.StoredChunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.Id), bs)
	n += ord.String.Marshal(c.StableID, bs[n:])
	n += ord.String.Marshal(c.Repo, bs[n:])
	n += ord.String.Marshal(c.Path, bs[n:])
	n += varint.Int.Marshal(c.ChunkIndex, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])

	n += varint.Int.Marshal(len(c.Metadata), bs[n:])
	for _, k := range sortedKeys(c.Metadata) {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(c.Metadata[k], bs[n:])
	}

	n += varint.Int.Marshal(len(c.Vector), bs[n:])
	for _, f := range c.Vector {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}

	n += varint.Int64.Marshal(toMicros(c.InsertedAt), bs[n:])
	n += varint.Int64.Marshal(toMicros(c.UpdatedAt), bs[n:])
	return n
}

func (storedChunkMUS) Size(c core.StoredChunk) (size int) {
	size = varint.Uint64.Size(uint64(c.Id))
	size += ord.String.Size(c.StableID)
	size += ord.String.Size(c.Repo)
	size += ord.String.Size(c.Path)
	size += varint.Int.Size(c.ChunkIndex)
	size += ord.String.Size(c.Text)

	size += varint.Int.Size(len(c.Metadata))
	for k, v := range c.Metadata {
		size += ord.String.Size(k) + ord.String.Size(v)
	}

	size += varint.Int.Size(len(c.Vector))
	for _, f := range c.Vector {
		size += varint.Uint32.Size(math.Float32bits(f))
	}

	size += varint.Int64.Size(toMicros(c.InsertedAt))
	size += varint.Int64.Size(toMicros(c.UpdatedAt))
	return size
}

func (storedChunkMUS) Unmarshal(bs []byte) (c core.StoredChunk, n int, err error) {
	r := &reader{bs: bs}

	c.Id = core.ID(read(r, varint.Uint64.Unmarshal))
	c.StableID = read(r, ord.String.Unmarshal)
	c.Repo = read(r, ord.String.Unmarshal)
	c.Path = read(r, ord.String.Unmarshal)
	c.ChunkIndex = read(r, varint.Int.Unmarshal)
	c.Text = read(r, ord.String.Unmarshal)

	if count := r.length(read(r, varint.Int.Unmarshal)); count > 0 {
		c.Metadata = make(map[string]string, count)
		for i := 0; i < count && r.err == nil; i++ {
			k := read(r, ord.String.Unmarshal)
			c.Metadata[k] = read(r, ord.String.Unmarshal)
		}
	}

	if count := r.length(read(r, varint.Int.Unmarshal)); count > 0 {
		c.Vector = make([]float32, count)
		for i := 0; i < count && r.err == nil; i++ {
			c.Vector[i] = math.Float32frombits(read(r, varint.Uint32.Unmarshal))
		}
	}

	c.InsertedAt = fromMicros(read(r, varint.Int64.Unmarshal))
	c.UpdatedAt = fromMicros(read(r, varint.Int64.Unmarshal))

	if r.err != nil {
		return core.StoredChunk{}, r.n, r.err
	}
	return c, r.n, nil
}

// reader threads the offset and first error through a sequence of unmarshal calls.
type reader struct {
	bs  []byte
	n   int
	err error
}

func read[T any](r *reader, unmarshal func([]byte) (T, int, error)) T {
	var zero T
	if r.err != nil {
		return zero
	}
	if r.n >= len(r.bs) {
		r.err = fmt.Errorf("%w: %w at offset %d", ErrSerializationFailed, ErrTruncatedData, r.n)
		return zero
	}
	v, m, err := unmarshal(r.bs[r.n:])
	r.n += m
	if err != nil {
		r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		return zero
	}
	return v
}

// length validates a decoded element count against the bytes left.
// Every element takes at least one byte.
func (r *reader) length(count int) int {
	if r.err != nil {
		return 0
	}
	if count < 0 || count > len(r.bs)-r.n {
		r.err = fmt.Errorf("%w: %w: count %d", ErrSerializationFailed, ErrTruncatedData, count)
		return 0
	}
	return count
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}
