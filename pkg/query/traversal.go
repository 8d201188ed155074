package query

import "github.com/dan-solli/agenticmemory/pkg/graph"

// Direction is the traversal direction relative to the start node.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Both     Direction = "both"
)

// TraversalParams configures Traverse.
type TraversalParams struct {
	StartID       uint64
	Direction     Direction
	EdgeTypes     map[graph.EdgeType]bool // nil/empty means all types
	MaxDepth      int
	MaxResults    int
	MinConfidence float64
	HasMinConf    bool
}

// ApplyDefaults fills zero-value Direction/MaxDepth/MaxResults with the
// spec defaults.
func (p *TraversalParams) ApplyDefaults() {
	if p.Direction == "" {
		p.Direction = Forward
	}
	if p.MaxDepth == 0 {
		p.MaxDepth = 5
	}
	if p.MaxResults == 0 {
		p.MaxResults = 50
	}
}

// VisitedNode is one result of a traversal: a node id and its BFS depth
// from the start node.
type VisitedNode struct {
	NodeID uint64
	Depth  int
}

// Traverse runs a breadth-first search from StartID. Cycles are tolerated
// via a visited set (§4.5 edge-case policy); self-edges are legal.
func Traverse(g *graph.Graph, p TraversalParams) []VisitedNode {
	p.ApplyDefaults()

	visited := map[uint64]bool{p.StartID: true}
	queue := []VisitedNode{{NodeID: p.StartID, Depth: 0}}
	var results []VisitedNode

	for len(queue) > 0 && len(results) < p.MaxResults {
		cur := queue[0]
		queue = queue[1:]

		if cur.Depth > 0 {
			if p.HasMinConf {
				n, err := g.Peek(cur.NodeID)
				if err != nil || n.Confidence < p.MinConfidence {
					continue
				}
			}
			results = append(results, cur)
		}

		if cur.Depth >= p.MaxDepth {
			continue
		}

		neighbors := neighborIDs(g, cur.NodeID, p.Direction, p.EdgeTypes)
		for _, nb := range neighbors {
			if !visited[nb] {
				visited[nb] = true
				queue = append(queue, VisitedNode{NodeID: nb, Depth: cur.Depth + 1})
			}
		}
	}
	return results
}

// neighborIDs returns the ids reachable from id in one hop, honoring
// direction and an optional edge-type filter.
func neighborIDs(g *graph.Graph, id uint64, dir Direction, types map[graph.EdgeType]bool) []uint64 {
	var out []uint64
	if dir == Forward || dir == Both {
		for _, e := range g.OutEdges(id, types) {
			out = append(out, e.TargetID)
		}
	}
	if dir == Backward || dir == Both {
		for _, e := range g.InEdges(id, types) {
			out = append(out, e.SourceID)
		}
	}
	return out
}
