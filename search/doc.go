// Package search ranks stored chunks against a query.
//
// The Searcher embeds the query, pulls vector candidates above a similarity
// threshold from the chunk repository, and adds a fixed boost to chunks that
// contain every significant query word verbatim. Stop words and surrounding
// punctuation are ignored for the verbatim check.
package search
