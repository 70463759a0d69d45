package search

import (
	"github.com/poiesic/arxivsearch/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(normalized string, dimension int)
	AfterVectorQuery(results []*core.SearchResult)
	TitleHit(entry *core.IndexEntry)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                          {}
func (n *noopMonitor) AfterEmbedding(_ string, _ int)          {}
func (n *noopMonitor) AfterVectorQuery(_ []*core.SearchResult) {}
func (n *noopMonitor) TitleHit(_ *core.IndexEntry)             {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)           {}
