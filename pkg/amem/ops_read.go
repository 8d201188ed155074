package amem

import (
	"github.com/dan-solli/agenticmemory/pkg/graph"
	"github.com/dan-solli/agenticmemory/pkg/query"
)

// Get returns a copy of a node, recording an access.
func (h *Handle) Get(id uint64) (*graph.Node, error) {
	op := h.beginOp("get")
	var n *graph.Node
	err := op.span("graph-get", func() error {
		var err error
		n, err = h.graph.Get(id)
		return err
	})
	op.finish(err)
	return n, err
}

// Pattern runs a filtered, sorted scan over every live node.
func (h *Handle) Pattern(f query.PatternFilter) []*graph.Node {
	op := h.beginOp("query")
	var out []*graph.Node
	_ = op.span("pattern-scan", func() error {
		out = query.Pattern(h.graph.AllNodes(), f, nowMicros())
		return nil
	})
	op.finish(nil)
	return out
}

// Traverse runs a breadth-first walk from a start node.
func (h *Handle) Traverse(p query.TraversalParams) []query.VisitedNode {
	op := h.beginOp("traverse")
	var out []query.VisitedNode
	_ = op.span("bfs", func() error {
		out = query.Traverse(h.graph, p)
		return nil
	})
	op.finish(nil)
	return out
}

// ShortestPath finds the fewest-hops path between two nodes, optionally
// restricted to an edge-type set.
func (h *Handle) ShortestPath(sourceID, targetID uint64, maxDepth int, types map[graph.EdgeType]bool) ([]uint64, error) {
	op := h.beginOp("traverse")
	var path []uint64
	err := op.span("shortest-path", func() error {
		var err error
		path, err = query.ShortestPathUnweighted(h.graph, sourceID, targetID, maxDepth, types)
		return err
	})
	op.finish(err)
	return path, err
}

// ShortestPathWeighted finds the lowest edge-weight path (Dijkstra).
func (h *Handle) ShortestPathWeighted(sourceID, targetID uint64, types map[graph.EdgeType]bool) ([]uint64, error) {
	op := h.beginOp("traverse")
	var path []uint64
	err := op.span("shortest-path-weighted", func() error {
		var err error
		path, err = query.ShortestPathWeighted(h.graph, sourceID, targetID, types)
		return err
	})
	op.finish(err)
	return path, err
}

// Centrality ranks nodes by the requested algorithm.
func (h *Handle) Centrality(algo query.CentralityAlgorithm, damping float64, limit int) []query.CentralityScore {
	op := h.beginOp("query")
	var out []query.CentralityScore
	_ = op.span("centrality", func() error {
		out = query.Centrality(h.graph, algo, damping, limit)
		return nil
	})
	op.finish(nil)
	return out
}

// CausalImpact walks CausedBy/DerivedFrom/Supports edges backward from a
// root node to find everything that would be affected by the root changing.
func (h *Handle) CausalImpact(rootID uint64, maxDepth int) []query.CausalNode {
	op := h.beginOp("traverse")
	var out []query.CausalNode
	_ = op.span("causal-impact", func() error {
		out = query.CausalImpact(h.graph, rootID, maxDepth)
		return nil
	})
	op.finish(nil)
	return out
}
