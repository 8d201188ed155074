package query

import (
	"sort"

	"github.com/dan-solli/agenticmemory/pkg/graph"
)

// CentralityAlgorithm selects which ranking algorithm Centrality runs.
type CentralityAlgorithm int

const (
	PageRank CentralityAlgorithm = iota
	Degree
	Betweenness
)

// CentralityScore pairs a node id with its computed score.
type CentralityScore struct {
	NodeID uint64
	Score  float64
}

// betweennessSampleCap is the total-node threshold above which betweenness
// sampling kicks in, and betweennessSampleSize is how many source nodes are
// sampled once it does — both taken from the original engine.
const (
	betweennessSampleCap  = 10000
	betweennessSampleSize = 1000
)

// Centrality computes a ranked, limit-bounded list of (id, score) using the
// requested algorithm.
func Centrality(g *graph.Graph, algo CentralityAlgorithm, damping float64, limit int) []CentralityScore {
	nodes := g.AllNodes()
	switch algo {
	case Degree:
		return rankAndLimit(degreeCentrality(g, nodes), limit)
	case Betweenness:
		return rankAndLimit(betweennessCentrality(g, nodes), limit)
	default:
		return rankAndLimit(pageRank(g, nodes, damping), limit)
	}
}

func rankAndLimit(scores map[uint64]float64, limit int) []CentralityScore {
	out := make([]CentralityScore, 0, len(scores))
	for id, s := range scores {
		out = append(out, CentralityScore{NodeID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// pageRank runs the standard power-iteration PageRank with dangling-node
// mass redistributed uniformly each round, damping 0.85 by default,
// tolerance 1e-6, max 100 iterations.
func pageRank(g *graph.Graph, nodes []*graph.Node, damping float64) map[uint64]float64 {
	n := len(nodes)
	if n == 0 {
		return map[uint64]float64{}
	}
	const tolerance = 1e-6
	const maxIter = 100

	ids := make([]uint64, n)
	idx := make(map[uint64]int, n)
	outDeg := make([]int, n)
	for i, node := range nodes {
		ids[i] = node.ID
		idx[node.ID] = i
	}
	for i, id := range ids {
		outDeg[i] = len(g.OutEdges(id, nil))
	}

	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}

	for iter := 0; iter < maxIter; iter++ {
		next := make([]float64, n)
		base := (1 - damping) / float64(n)

		var danglingMass float64
		for i, id := range ids {
			if outDeg[i] == 0 {
				danglingMass += rank[i]
			} else {
				share := damping * rank[i] / float64(outDeg[i])
				for _, e := range g.OutEdges(id, nil) {
					if j, ok := idx[e.TargetID]; ok {
						next[j] += share
					}
				}
			}
		}
		danglingShare := damping * danglingMass / float64(n)

		maxDiff := 0.0
		for i := range next {
			next[i] += base + danglingShare
			if d := next[i] - rank[i]; d > maxDiff || -d > maxDiff {
				if d < 0 {
					d = -d
				}
				maxDiff = d
			}
		}
		rank = next
		if maxDiff < tolerance {
			break
		}
	}

	out := make(map[uint64]float64, n)
	for i, id := range ids {
		out[id] = rank[i]
	}
	return out
}

// degreeCentrality normalizes in+out degree by 2*(n-1) (or 1 if n<=1).
func degreeCentrality(g *graph.Graph, nodes []*graph.Node) map[uint64]float64 {
	n := len(nodes)
	norm := float64(2 * (n - 1))
	if norm <= 0 {
		norm = 1
	}
	out := make(map[uint64]float64, n)
	for _, node := range nodes {
		deg := len(g.OutEdges(node.ID, nil)) + len(g.InEdges(node.ID, nil))
		out[node.ID] = float64(deg) / norm
	}
	return out
}

// betweennessCentrality implements Brandes' algorithm over the (undirected
// sense) adjacency induced by treating every edge as bidirectional for
// path-counting purposes, with a sampling cap above 10,000 total nodes.
func betweennessCentrality(g *graph.Graph, nodes []*graph.Node) map[uint64]float64 {
	cb := make(map[uint64]float64, len(nodes))
	for _, n := range nodes {
		cb[n.ID] = 0
	}
	if len(nodes) == 0 {
		return cb
	}

	sources := nodes
	if len(nodes) > betweennessSampleCap {
		sources = nodes[:betweennessSampleSize]
	}

	neighborsOf := func(id uint64) []uint64 {
		var out []uint64
		for _, e := range g.OutEdges(id, nil) {
			out = append(out, e.TargetID)
		}
		for _, e := range g.InEdges(id, nil) {
			out = append(out, e.SourceID)
		}
		return out
	}

	for _, s := range sources {
		stack := []uint64{}
		pred := map[uint64][]uint64{}
		sigma := map[uint64]float64{s.ID: 1}
		dist := map[uint64]int{s.ID: 0}
		queue := []uint64{s.ID}

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range neighborsOf(v) {
				if _, ok := dist[w]; !ok {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		delta := map[uint64]float64{}
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				if sigma[w] != 0 {
					delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
				}
			}
			if w != s.ID {
				cb[w] += delta[w]
			}
		}
	}

	return cb
}
