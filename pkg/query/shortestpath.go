package query

import (
	"container/heap"

	"github.com/dan-solli/agenticmemory/pkg/graph"
)

// ErrNoPath is returned (as a plain sentinel, not amemerr, since it is a
// query-engine-local control value rather than a handle-level failure) when
// no path exists between two nodes.
var ErrNoPath = &noPathError{}

type noPathError struct{}

func (*noPathError) Error() string { return "no path" }

// ShortestPathUnweighted finds a path from src to dst using uniform edge
// cost, honoring an optional edge-type whitelist. Uses bidirectional BFS
// (half_depth = max_depth/2 + 1 per side), matching the original engine's
// strategy for large graphs when both endpoints are known.
func ShortestPathUnweighted(g *graph.Graph, src, dst uint64, maxDepth int, types map[graph.EdgeType]bool) ([]uint64, error) {
	if src == dst {
		return []uint64{src}, nil
	}
	halfDepth := maxDepth/2 + 1

	forwardParent := map[uint64]uint64{src: src}
	forwardFrontier := []uint64{src}
	backwardParent := map[uint64]uint64{dst: dst}
	backwardFrontier := []uint64{dst}

	meet := uint64(0)
	found := false

	for depth := 0; depth < halfDepth && !found; depth++ {
		var nextForward []uint64
		for _, id := range forwardFrontier {
			for _, e := range g.OutEdges(id, types) {
				if _, seen := forwardParent[e.TargetID]; !seen {
					forwardParent[e.TargetID] = id
					nextForward = append(nextForward, e.TargetID)
					if _, ok := backwardParent[e.TargetID]; ok {
						meet = e.TargetID
						found = true
					}
				}
			}
		}
		forwardFrontier = nextForward
		if found {
			break
		}

		var nextBackward []uint64
		for _, id := range backwardFrontier {
			for _, e := range g.InEdges(id, types) {
				if _, seen := backwardParent[e.SourceID]; !seen {
					backwardParent[e.SourceID] = id
					nextBackward = append(nextBackward, e.SourceID)
					if _, ok := forwardParent[e.SourceID]; ok {
						meet = e.SourceID
						found = true
					}
				}
			}
		}
		backwardFrontier = nextBackward
	}

	if !found {
		return nil, ErrNoPath
	}

	var forwardPath []uint64
	for cur := meet; ; {
		forwardPath = append([]uint64{cur}, forwardPath...)
		if cur == src {
			break
		}
		cur = forwardParent[cur]
	}
	if meet == dst {
		return forwardPath, nil
	}
	var backwardPath []uint64
	for cur := backwardParent[meet]; ; {
		backwardPath = append(backwardPath, cur)
		if cur == dst {
			break
		}
		cur = backwardParent[cur]
	}
	return append(forwardPath, backwardPath...), nil
}

// pqItem is a Dijkstra priority-queue entry.
type pqItem struct {
	id   uint64
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ShortestPathWeighted finds the minimum-cost path using edge_cost = 1 -
// weight (so a weight-1.0 edge is free and a weight-0.0 edge costs 1),
// honoring an optional edge-type whitelist.
func ShortestPathWeighted(g *graph.Graph, src, dst uint64, types map[graph.EdgeType]bool) ([]uint64, error) {
	dist := map[uint64]float64{src: 0}
	prev := map[uint64]uint64{}
	visited := map[uint64]bool{}

	pq := &priorityQueue{{id: src, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true
		if cur.id == dst {
			break
		}
		for _, e := range g.OutEdges(cur.id, types) {
			cost := 1.0 - e.Weight
			if cost < 0 {
				cost = 0
			}
			nd := cur.dist + cost
			if existing, ok := dist[e.TargetID]; !ok || nd < existing {
				dist[e.TargetID] = nd
				prev[e.TargetID] = cur.id
				heap.Push(pq, pqItem{id: e.TargetID, dist: nd})
			}
		}
	}

	if _, ok := dist[dst]; !ok {
		return nil, ErrNoPath
	}

	var path []uint64
	for cur := dst; ; {
		path = append([]uint64{cur}, path...)
		if cur == src {
			break
		}
		p, ok := prev[cur]
		if !ok {
			return nil, ErrNoPath
		}
		cur = p
	}
	return path, nil
}
