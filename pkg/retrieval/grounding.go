package retrieval

import (
	"github.com/dan-solli/agenticmemory/pkg/graph"
	"github.com/dan-solli/agenticmemory/pkg/index"
	"github.com/dan-solli/agenticmemory/pkg/query"
)

// Verdict is the grounding classification for a claim.
type Verdict string

const (
	Grounded   Verdict = "Grounded"
	Ungrounded Verdict = "Ungrounded"
	Partial    Verdict = "Partial"
)

// groundingThreshold is the minimum top BM25 score a claim's best-matching
// evidence must clear to count as grounded.
const groundingThreshold = 0.3

// contradictionCheckDepth bounds how far a Contradicts edge may be from the
// top evidence node and still invalidate grounding.
const contradictionCheckDepth = 2

// GroundingResult reports a claim's verdict and the evidence node ids that
// informed it.
type GroundingResult struct {
	Verdict    Verdict
	EvidenceID []uint64
}

// Ground classifies a claim against the corpus: Grounded if the top BM25
// match scores above the threshold and no Contradicts edge is reachable
// from it within contradictionCheckDepth hops; Partial if there is
// supporting evidence below threshold or a contradiction nearby; Ungrounded
// if no evidence exists at all.
func Ground(g *graph.Graph, term *index.TermIndex, tok *index.Tokenizer, claim string) GroundingResult {
	ranked := BM25Search(term, tok, claim, 5, DefaultBM25Params())
	if len(ranked) == 0 {
		return GroundingResult{Verdict: Ungrounded}
	}

	evidence := make([]uint64, 0, len(ranked))
	for _, r := range ranked {
		evidence = append(evidence, r.NodeID)
	}

	top := ranked[0]
	if top.Score <= groundingThreshold {
		return GroundingResult{Verdict: Partial, EvidenceID: evidence}
	}

	contradicted := query.Traverse(g, query.TraversalParams{
		StartID:   top.NodeID,
		Direction: query.Both,
		EdgeTypes: map[graph.EdgeType]bool{graph.Contradicts: true},
		MaxDepth:  contradictionCheckDepth,
	})
	if len(contradicted) > 0 {
		return GroundingResult{Verdict: Partial, EvidenceID: evidence}
	}

	return GroundingResult{Verdict: Grounded, EvidenceID: evidence}
}
