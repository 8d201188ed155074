package correction

import (
	"math"
	"sort"

	"github.com/dan-solli/agenticmemory/pkg/amemerr"
	"github.com/dan-solli/agenticmemory/pkg/graph"
)

// AnalogyAnchor selects what to search for analogies around: either an
// existing node, or a free vector (the most similar node becomes the
// anchor's center).
type AnalogyAnchor struct {
	NodeID uint64
	HasID  bool
	Vector []float32
}

// AnalogyParams configures an analogical query.
type AnalogyParams struct {
	Anchor          AnalogyAnchor
	ContextDepth    int
	MaxResults      int
	MinSimilarity   float64
	ExcludeSessions map[uint64]bool
}

// Fingerprint is a structural summary of a subgraph used to compare
// "shape" independent of content: event-type distribution, edge-type
// distribution, longest CausedBy chain, and average branching factor.
type Fingerprint struct {
	EventTypeCounts map[graph.EventType]int
	EdgeTypeCounts  map[graph.EdgeType]int
	CausalChainDepth int
	BranchingFactor  float64
}

// Analogy is a single analogical match.
type Analogy struct {
	CenterID             uint64
	StructuralSimilarity float64
	ContentSimilarity    float64
	CombinedScore        float64
	Pattern              Fingerprint
	SubgraphNodes        []uint64
}

// FindAnalogies finds subgraphs structurally and semantically similar to the
// anchor, via structural fingerprinting rather than full subgraph
// isomorphism. combined = 0.6*structural + 0.4*content.
func FindAnalogies(g *graph.Graph, p AnalogyParams) ([]Analogy, error) {
	var anchorCenter uint64
	var anchorVec []float32

	if p.Anchor.HasID {
		n, err := g.Peek(p.Anchor.NodeID)
		if err != nil {
			return nil, err
		}
		anchorCenter = n.ID
		anchorVec = n.Embedding
	} else if p.Anchor.Vector != nil {
		best := uint64(0)
		bestSim := -1.0
		found := false
		for _, n := range g.AllNodes() {
			if len(n.Embedding) == 0 || allZero(n.Embedding) {
				continue
			}
			sim := cosineSimilarity(p.Anchor.Vector, n.Embedding)
			if sim > bestSim {
				bestSim = sim
				best = n.ID
				found = true
			}
		}
		if !found {
			return nil, nil
		}
		anchorCenter = best
		anchorVec = p.Anchor.Vector
	} else {
		return nil, amemerr.New("analogy", amemerr.InvalidArgument, "anchor requires a node id or vector")
	}

	anchorSubgraph, err := Context(g, anchorCenter, p.ContextDepth)
	if err != nil {
		return nil, err
	}
	anchorFP := structuralFingerprint(anchorSubgraph)
	anchorNode, _ := g.Peek(anchorCenter)
	anchorSession := anchorNode.SessionID

	anchorSet := map[uint64]bool{}
	for _, n := range anchorSubgraph.Nodes {
		anchorSet[n.ID] = true
	}

	allNodes := g.AllNodes()
	var analogies []Analogy

	for _, n := range allNodes {
		if anchorSet[n.ID] {
			continue
		}
		if p.ExcludeSessions[n.SessionID] {
			continue
		}
		if n.SessionID == anchorSession && len(allNodes) > len(anchorSubgraph.Nodes) {
			continue
		}

		candidateSubgraph, err := Context(g, n.ID, p.ContextDepth)
		if err != nil {
			continue
		}
		candidateFP := structuralFingerprint(candidateSubgraph)
		structuralSim := compareFingerprints(anchorFP, candidateFP)

		var contentSim float64
		if len(anchorVec) > 0 && !allZero(anchorVec) && len(n.Embedding) == len(anchorVec) && !allZero(n.Embedding) {
			if s := cosineSimilarity(anchorVec, n.Embedding); s > 0 {
				contentSim = s
			}
		}

		combined := 0.6*structuralSim + 0.4*contentSim
		if combined >= p.MinSimilarity {
			ids := make([]uint64, 0, len(candidateSubgraph.Nodes))
			for _, cn := range candidateSubgraph.Nodes {
				ids = append(ids, cn.ID)
			}
			analogies = append(analogies, Analogy{
				CenterID:             n.ID,
				StructuralSimilarity: structuralSim,
				ContentSimilarity:    contentSim,
				CombinedScore:        combined,
				Pattern:              candidateFP,
				SubgraphNodes:        ids,
			})
		}
	}

	sort.Slice(analogies, func(i, j int) bool { return analogies[i].CombinedScore > analogies[j].CombinedScore })
	if p.MaxResults > 0 && len(analogies) > p.MaxResults {
		analogies = analogies[:p.MaxResults]
	}
	return analogies, nil
}

func structuralFingerprint(sg Subgraph) Fingerprint {
	eventCounts := map[graph.EventType]int{}
	for _, n := range sg.Nodes {
		eventCounts[n.EventType]++
	}

	edgeCounts := map[graph.EdgeType]int{}
	for _, e := range sg.Edges {
		edgeCounts[e.EdgeType]++
	}

	nodeSet := map[uint64]bool{}
	for _, n := range sg.Nodes {
		nodeSet[n.ID] = true
	}
	causalAdj := map[uint64][]uint64{}
	hasCausal := false
	for _, e := range sg.Edges {
		if e.EdgeType == graph.CausedBy && nodeSet[e.SourceID] && nodeSet[e.TargetID] {
			causalAdj[e.SourceID] = append(causalAdj[e.SourceID], e.TargetID)
			hasCausal = true
		}
	}

	causalChainDepth := 0
	if hasCausal {
		for id := range nodeSet {
			visitedLocal := map[uint64]bool{id: true}
			queue := []struct {
				id    uint64
				depth int
			}{{id, 0}}
			for len(queue) > 0 {
				cur := queue[0]
				queue = queue[1:]
				if cur.depth > causalChainDepth {
					causalChainDepth = cur.depth
				}
				for _, nb := range causalAdj[cur.id] {
					if !visitedLocal[nb] {
						visitedLocal[nb] = true
						queue = append(queue, struct {
							id    uint64
							depth int
						}{nb, cur.depth + 1})
					}
				}
			}
		}
	}

	var branchingFactor float64
	if len(sg.Nodes) > 0 {
		outCounts := map[uint64]int{}
		for _, n := range sg.Nodes {
			outCounts[n.ID] = 0
		}
		for _, e := range sg.Edges {
			if _, ok := outCounts[e.SourceID]; ok {
				outCounts[e.SourceID]++
			}
		}
		total := 0
		for _, c := range outCounts {
			total += c
		}
		branchingFactor = float64(total) / float64(len(sg.Nodes))
	}

	return Fingerprint{
		EventTypeCounts:  eventCounts,
		EdgeTypeCounts:   edgeCounts,
		CausalChainDepth: causalChainDepth,
		BranchingFactor:  branchingFactor,
	}
}

func compareFingerprints(a, b Fingerprint) float64 {
	etSim := mapCosineSimilarityEventType(a.EventTypeCounts, b.EventTypeCounts)
	edgeSim := mapCosineSimilarityEdgeType(a.EdgeTypeCounts, b.EdgeTypeCounts)

	maxChain := math.Max(float64(a.CausalChainDepth), float64(b.CausalChainDepth))
	if maxChain < 1 {
		maxChain = 1
	}
	chainSim := 1.0 - math.Abs(float64(a.CausalChainDepth-b.CausalChainDepth))/maxChain

	maxBF := math.Max(a.BranchingFactor, b.BranchingFactor)
	if maxBF < 0.01 {
		maxBF = 0.01
	}
	bfSim := 1.0 - math.Abs(a.BranchingFactor-b.BranchingFactor)/maxBF

	return 0.3*etSim + 0.3*edgeSim + 0.2*chainSim + 0.2*bfSim
}

func mapCosineSimilarityEventType(a, b map[graph.EventType]int) float64 {
	keys := map[graph.EventType]bool{}
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}
	if len(keys) == 0 {
		return 1.0
	}
	var dot, normA, normB float64
	for k := range keys {
		va, vb := float64(a[k]), float64(b[k])
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom < 1e-12 {
		return 0
	}
	return dot / denom
}

func mapCosineSimilarityEdgeType(a, b map[graph.EdgeType]int) float64 {
	keys := map[graph.EdgeType]bool{}
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}
	if len(keys) == 0 {
		return 1.0
	}
	var dot, normA, normB float64
	for k := range keys {
		va, vb := float64(a[k]), float64(b[k])
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom < 1e-12 {
		return 0
	}
	return dot / denom
}
