package query

import "github.com/dan-solli/agenticmemory/pkg/graph"

// causalEdgeTypes is the fixed set of relations that carry causal weight:
// an edge A --CausedBy/DerivedFrom/Supports--> B means A depends on B, so
// impact flows from B outward along the *inverse* of these edges.
var causalEdgeTypes = map[graph.EdgeType]bool{
	graph.CausedBy:    true,
	graph.DerivedFrom: true,
	graph.Supports:    true,
}

// CausalNode is one node in a causal-impact DAG, annotated with its
// distance from the root and the edge that pulled it in.
type CausalNode struct {
	NodeID   uint64
	Depth    int
	ViaEdge  graph.EdgeType
	ParentID uint64
}

// CausalImpact finds every node whose belief transitively rests on rootID,
// i.e. every node reachable by walking CausedBy/DerivedFrom/Supports edges
// backward from rootID. Returned in breadth-first order, each node once,
// annotated with its depth and the parent and edge through which it was
// first reached.
func CausalImpact(g *graph.Graph, rootID uint64, maxDepth int) []CausalNode {
	if maxDepth <= 0 {
		maxDepth = 5
	}

	visited := map[uint64]bool{rootID: true}
	queue := []uint64{rootID}
	depth := map[uint64]int{rootID: 0}
	var out []CausalNode

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := depth[cur]
		if d >= maxDepth {
			continue
		}
		for _, e := range g.InEdges(cur, causalEdgeTypes) {
			if visited[e.SourceID] {
				continue
			}
			visited[e.SourceID] = true
			depth[e.SourceID] = d + 1
			out = append(out, CausalNode{
				NodeID:   e.SourceID,
				Depth:    d + 1,
				ViaEdge:  e.EdgeType,
				ParentID: cur,
			})
			queue = append(queue, e.SourceID)
		}
	}
	return out
}
