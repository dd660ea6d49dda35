// Package filter selects the repository files that are ingested.
//
// Decisions are pure functions of the path: a path is rejected when any of
// its segments is an excluded directory (version control, dependency, build
// and cache folders) or when it matches a generated-asset, binary or lockfile
// pattern. Remaining paths are accepted when their extension is on the text
// allow-list, or when they are a well-known extensionless build file such as
// a Dockerfile or Makefile.
package filter
