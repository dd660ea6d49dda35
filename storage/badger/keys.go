package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/repoingest/core"
)

// Key prefixes for different data types
const (
	chunkPrefix     = "chunk"
	chunkPathPrefix = "chkpath"
)

// pathSep separates repository, path and index in path index keys.
// It sorts before every byte a path can contain.
const pathSep = 0x00

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", chunkPrefix, id))
}

// makeChunkRecordPrefix returns the prefix shared by all chunk records.
func makeChunkRecordPrefix() []byte {
	return []byte(chunkPrefix + ":")
}

// makeChunkPathKey generates a composite key for the path index.
// Format: prefix:repo\x00path\x00index
func makeChunkPathKey(repo, path string, index int) []byte {
	prefix := makeFilePrefix(repo, path)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// BigEndian keeps chunk indices in numeric order
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}

// makeFilePrefix generates the path index prefix for one file.
// Format: prefix:repo\x00path\x00
func makeFilePrefix(repo, path string) []byte {
	buf := makeRepoPrefix(repo)
	buf = append(buf, path...)
	return append(buf, pathSep)
}

// makeRepoPrefix generates the path index prefix for a repository.
// Format: prefix:repo\x00
func makeRepoPrefix(repo string) []byte {
	buf := make([]byte, 0, len(chunkPathPrefix)+1+len(repo)+1)
	buf = append(buf, chunkPathPrefix...)
	buf = append(buf, ':')
	buf = append(buf, repo...)
	return append(buf, pathSep)
}
