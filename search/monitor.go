package search

import "github.com/poiesic/repoingest/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterSemanticSearch(ids []core.ID)
	SemanticHit(chunk *core.StoredChunk)
	VerbatimHit(chunk *core.StoredChunk)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                  {}
func (n *noopMonitor) AfterSemanticSearch(_ []core.ID) {}
func (n *noopMonitor) SemanticHit(_ *core.StoredChunk) {}
func (n *noopMonitor) VerbatimHit(_ *core.StoredChunk) {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)   {}
