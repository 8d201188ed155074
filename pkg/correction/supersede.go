// Package correction implements the Correction & Resolution component (C7):
// supersession chains, belief revision cascades, gap detection, analogical
// query, and drift detection. Grounded structurally on the donor's
// RecordSupersession/GetSupersessionChain/GetSupersedingMemory/
// GetSupersededMemories idiom (pkg/store/memory.go) and algorithmically on
// the original engine's cognitive.rs (belief revision, gaps, analogy, drift).
package correction

import (
	"github.com/dan-solli/agenticmemory/pkg/amemerr"
	"github.com/dan-solli/agenticmemory/pkg/graph"
)

// Correct records that supersedingID replaces supersededID: it links a
// Supersedes edge from the new node to the old one. Fails the same way
// graph.Link does — NotFound on a missing endpoint, InvariantViolation if
// the edge would close a cycle in the Supersedes DAG.
func Correct(g *graph.Graph, supersedingID, supersededID uint64) (uint64, error) {
	return g.Link(supersedingID, supersededID, graph.Supersedes, 1.0)
}

// Resolve follows the Supersedes chain forward from id (id -> what
// supersedes id -> ...) and returns the terminal, non-superseded
// descendant's id. Fails NotFound if id itself does not exist.
func Resolve(g *graph.Graph, id uint64) (uint64, error) {
	if _, err := g.Peek(id); err != nil {
		return 0, err
	}

	current := id
	visited := map[uint64]bool{current: true}
	for {
		next, ok := supersedingOf(g, current)
		if !ok || visited[next] {
			return current, nil
		}
		visited[next] = true
		current = next
	}
}

// supersedingOf returns the id of the node that directly supersedes id, if
// any. A node is superseded by the source of an incoming Supersedes edge
// (source supersedes target, per graph.Link(supersedingID, supersededID, ...)).
func supersedingOf(g *graph.Graph, id uint64) (uint64, bool) {
	for _, e := range g.InEdges(id, map[graph.EdgeType]bool{graph.Supersedes: true}) {
		return e.SourceID, true
	}
	return 0, false
}

// Chain returns the full Supersedes chain containing id, oldest first,
// by tracing backward to the root and then forward to the terminal node.
func Chain(g *graph.Graph, id uint64) ([]uint64, error) {
	if _, err := g.Peek(id); err != nil {
		return nil, err
	}

	root := id
	visited := map[uint64]bool{root: true}
	for {
		prev, ok := supersededBy(g, root)
		if !ok || visited[prev] {
			break
		}
		visited[prev] = true
		root = prev
	}

	chain := []uint64{root}
	current := root
	seen := map[uint64]bool{root: true}
	for {
		next, ok := supersedingOf(g, current)
		if !ok || seen[next] {
			break
		}
		seen[next] = true
		chain = append(chain, next)
		current = next
	}
	return chain, nil
}

// supersededBy returns the id of the node id supersedes (walking backward:
// who did id replace), if any.
func supersededBy(g *graph.Graph, id uint64) (uint64, bool) {
	for _, e := range g.OutEdges(id, map[graph.EdgeType]bool{graph.Supersedes: true}) {
		return e.TargetID, true
	}
	return 0, false
}

// ErrNotSuperseded marks a node that has no superseding successor.
var ErrNotSuperseded = amemerr.New("superseding_of", amemerr.NotFound, "node is not superseded")
