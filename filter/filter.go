package filter

import (
	"path"
	"regexp"
	"strings"

	"github.com/poiesic/repoingest/core"
)

// Decision is the result of evaluating a tree entry.
type Decision bool

const (
	// Accept means the entry is ingested.
	Accept Decision = true
	// Reject means the entry is ignored.
	Reject Decision = false
)

func (d Decision) String() string {
	if d {
		return "accept"
	}
	return "reject"
}

// excludedSegments are directory or file names that disqualify any path containing them.
var excludedSegments = map[string]struct{}{
	".git": {}, ".svn": {}, ".hg": {}, "node_modules": {}, "__pycache__": {},
	".pytest_cache": {}, ".venv": {}, "venv": {}, "env": {}, "dist": {},
	"build": {}, "target": {}, ".next": {}, ".nuxt": {}, "bower_components": {},
	".DS_Store": {}, "Thumbs.db": {}, ".tox": {}, "bin": {}, "obj": {},
}

// excludedPatterns match generated assets, binary formats and lockfiles.
var excludedPatterns = []string{
	`\.min\.(js|css)$`,
	`\.pack\.(js|css)$`,
	`\.map$`,
	`\.bundle\.(js|css)$`,
	`\.(png|jpg|jpeg|gif|bmp|svg|ico|tif|tiff|webp|avif)$`,
	`\.(mp3|wav|ogg|flac|aac|m4a)$`,
	`\.(mp4|avi|mkv|mov|wmv|flv|webm)$`,
	`\.(zip|rar|tar|gz|7z|bz2|xz)$`,
	`\.(exe|msi|dmg|pkg|deb|rpm|app)$`,
	`\.(ttf|otf|woff|woff2|eot)$`,
	`\.(pdf|doc|docx|xls|xlsx|ppt|pptx)$`,
	`package-lock\.json$`,
	`yarn\.lock$`,
	`composer\.lock$`,
	`poetry\.lock$`,
}

// textExtensions is the allow-list of text, code and config extensions.
var textExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {}, ".java": {}, ".c": {},
	".cpp": {}, ".cc": {}, ".h": {}, ".hpp": {}, ".cs": {}, ".php": {}, ".rb": {},
	".go": {}, ".rs": {}, ".swift": {}, ".kt": {}, ".scala": {}, ".m": {}, ".sh": {},
	".pl": {}, ".r": {}, ".lua": {}, ".dart": {}, ".hs": {}, ".ml": {}, ".clj": {},
	".ex": {}, ".erl": {}, ".groovy": {},
	".html": {}, ".htm": {}, ".css": {}, ".scss": {}, ".sass": {}, ".vue": {}, ".svelte": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".xml": {}, ".toml": {}, ".ini": {}, ".cfg": {}, ".conf": {},
	".csv": {}, ".sql": {}, ".graphql": {}, ".proto": {},
	".md": {}, ".txt": {}, ".rst": {}, ".adoc": {}, ".tex": {},
	".env": {}, ".gitignore": {}, ".dockerignore": {}, ".bat": {}, ".ps1": {}, ".bash": {},
	".cmake": {}, ".mk": {}, ".properties": {}, ".lock": {}, ".mod": {},
}

// buildFiles are extensionless names accepted by lowercase match.
var buildFiles = map[string]struct{}{
	"dockerfile": {}, "makefile": {}, "rakefile": {}, "gemfile": {}, "procfile": {},
}

// Filter decides which tree entries are worth ingesting.
// A Filter is immutable and safe for concurrent use.
type Filter struct {
	patterns []*regexp.Regexp
}

// New compiles the exclusion patterns.
func New() *Filter {
	patterns := make([]*regexp.Regexp, len(excludedPatterns))
	for i, p := range excludedPatterns {
		patterns[i] = regexp.MustCompile(`(?i)` + p)
	}
	return &Filter{patterns: patterns}
}

var defaultFilter = New()

// Decide evaluates a path with the default filter.
func Decide(p string, size int64) Decision {
	return defaultFilter.Decide(p, size)
}

// Decide reports whether the entry at p should be ingested. size is accepted
// for callers that carry it alongside the path; the size cap is enforced when
// the blob is fetched, not here.
func (f *Filter) Decide(p string, size int64) Decision {
	if p == "" {
		return Reject
	}

	segments := strings.Split(p, "/")
	for _, segment := range segments {
		if _, excluded := excludedSegments[segment]; excluded {
			return Reject
		}
	}

	for _, re := range f.patterns {
		if re.MatchString(p) {
			return Reject
		}
	}

	name := segments[len(segments)-1]
	if name == "" {
		return Reject
	}

	// path.Ext treats a leading dot as an extension, so ".env" and
	// ".gitignore" are matched against the allow-list like any other suffix.
	if ext := path.Ext(name); ext != "" {
		_, ok := textExtensions[strings.ToLower(ext)]
		return Decision(ok)
	}

	_, ok := buildFiles[strings.ToLower(name)]
	return Decision(ok)
}

// Apply keeps the blob entries the filter accepts, preserving order.
func (f *Filter) Apply(entries []core.FileEntry) []core.FileEntry {
	accepted := make([]core.FileEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Kind != core.KindBlob {
			continue
		}
		if f.Decide(entry.Path, entry.Size) == Accept {
			accepted = append(accepted, entry)
		}
	}
	return accepted
}
