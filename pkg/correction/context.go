package correction

import "github.com/dan-solli/agenticmemory/pkg/graph"

// Subgraph is a bounded neighborhood extracted around a center node.
type Subgraph struct {
	Nodes []*graph.Node
	Edges []*graph.Edge
}

// Context extracts the subgraph reachable from centerID within depth hops
// in either direction, including every edge with both endpoints inside it.
func Context(g *graph.Graph, centerID uint64, depth int) (Subgraph, error) {
	center, err := g.Peek(centerID)
	if err != nil {
		return Subgraph{}, err
	}

	visited := map[uint64]bool{centerID: true}
	queue := []uint64{centerID}
	nodeSet := map[uint64]*graph.Node{centerID: center}

	for d := 0; d < depth; d++ {
		var next []uint64
		for _, id := range queue {
			for _, e := range g.OutEdges(id, nil) {
				if !visited[e.TargetID] {
					visited[e.TargetID] = true
					if n, err := g.Peek(e.TargetID); err == nil {
						nodeSet[e.TargetID] = n
						next = append(next, e.TargetID)
					}
				}
			}
			for _, e := range g.InEdges(id, nil) {
				if !visited[e.SourceID] {
					visited[e.SourceID] = true
					if n, err := g.Peek(e.SourceID); err == nil {
						nodeSet[e.SourceID] = n
						next = append(next, e.SourceID)
					}
				}
			}
		}
		queue = next
	}

	nodes := make([]*graph.Node, 0, len(nodeSet))
	for _, n := range nodeSet {
		nodes = append(nodes, n)
	}

	var edges []*graph.Edge
	seenEdge := map[uint64]bool{}
	for id := range nodeSet {
		for _, e := range g.OutEdges(id, nil) {
			if nodeSet[e.TargetID] != nil && !seenEdge[e.ID] {
				seenEdge[e.ID] = true
				edges = append(edges, e)
			}
		}
	}

	return Subgraph{Nodes: nodes, Edges: edges}, nil
}
