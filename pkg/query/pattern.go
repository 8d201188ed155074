// Package query implements the Query Engine (C5): pattern queries, graph
// traversal, shortest path, centrality, and causal impact, grounded
// algorithmically on the original engine's graph_algo.rs and structurally
// on the donor's BFS-from-seeds search idiom (pkg/search/graph.go).
package query

import (
	"sort"

	"github.com/dan-solli/agenticmemory/pkg/decay"
	"github.com/dan-solli/agenticmemory/pkg/graph"
)

// SortBy enumerates the pattern-query ordering options.
type SortBy string

const (
	SortRecent     SortBy = "recent"
	SortConfidence SortBy = "confidence"
	SortAccessed   SortBy = "accessed"
	SortImportance SortBy = "importance"
)

// PatternFilter restricts a pattern query; zero-value fields mean
// "unfiltered" for that dimension.
type PatternFilter struct {
	EventType       graph.EventType
	HasEventType    bool
	SessionID       uint64
	HasSessionID    bool
	MinConfidence   float64
	MaxConfidence   float64
	HasConfidence   bool
	CreatedAfter    int64
	CreatedBefore   int64
	HasCreatedRange bool
	SortBy          SortBy
	Limit           int
}

// ApplyDefaults fills the zero-value SortBy/Limit with the spec defaults.
func (f *PatternFilter) ApplyDefaults() {
	if f.SortBy == "" {
		f.SortBy = SortRecent
	}
	if f.Limit == 0 {
		f.Limit = 20
	}
}

// Pattern runs a pattern query over nodes, which should be the graph's live
// (non-tombstoned) node set. now is used only when SortBy == SortImportance.
func Pattern(nodes []*graph.Node, f PatternFilter, now int64) []*graph.Node {
	f.ApplyDefaults()

	matched := make([]*graph.Node, 0, len(nodes))
	for _, n := range nodes {
		if f.HasEventType && n.EventType != f.EventType {
			continue
		}
		if f.HasSessionID && n.SessionID != f.SessionID {
			continue
		}
		if f.HasConfidence && (n.Confidence < f.MinConfidence || n.Confidence > f.MaxConfidence) {
			continue
		}
		if f.HasCreatedRange && (n.CreatedAt < f.CreatedAfter || n.CreatedAt > f.CreatedBefore) {
			continue
		}
		matched = append(matched, n)
	}

	switch f.SortBy {
	case SortConfidence:
		sort.Slice(matched, func(i, j int) bool { return matched[i].Confidence > matched[j].Confidence })
	case SortAccessed:
		sort.Slice(matched, func(i, j int) bool { return matched[i].AccessCount > matched[j].AccessCount })
	case SortImportance:
		scores := make(map[uint64]float64, len(matched))
		for _, n := range matched {
			scores[n.ID] = decay.Score(decay.Input{
				Confidence:         n.Confidence,
				CreatedAtMicros:    n.CreatedAt,
				AccessCount:        n.AccessCount,
				LastAccessedMicros: n.LastAccessed,
				NowMicros:          now,
			}, decay.DefaultParams())
		}
		sort.Slice(matched, func(i, j int) bool { return scores[matched[i].ID] > scores[matched[j].ID] })
	default: // SortRecent
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt > matched[j].CreatedAt })
	}

	if len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched
}
