package correction

import (
	"strings"

	"github.com/dan-solli/agenticmemory/pkg/graph"
	"github.com/dan-solli/agenticmemory/pkg/index"
)

// negationWords flags hypothesis-contradicting content. Kept separate from
// index.Tokenizer's stopword list: these words must survive tokenization to
// be detectable, so they are matched against raw lowercased content, not
// stemmed terms.
var negationWords = []string{
	"not", "no", "never", "neither", "nor", "none", "nothing", "nowhere",
	"nobody", "cannot", "can't", "don't", "doesn't", "didn't", "won't",
	"wouldn't", "shouldn't", "couldn't", "isn't", "aren't", "wasn't",
	"weren't", "hasn't", "haven't", "hadn't", "false", "incorrect", "wrong",
	"invalid", "untrue", "deny", "denied", "disagree", "unlike", "opposite",
	"contrary", "instead", "rather",
}

// cascadeDecayBase is the per-depth weakening attenuation (0.7^depth).
const cascadeDecayBase = 0.7

// ReviseParams configures a belief-revision query.
type ReviseParams struct {
	Hypothesis             string
	HypothesisVector       []float32
	ContradictionThreshold float64
	MaxDepth               int
}

// Contradicted is one node found to contradict the hypothesis.
type Contradicted struct {
	NodeID   uint64
	Strength float64
	Reason   string
}

// Weakened is one node whose confidence would be reduced by the cascade.
type Weakened struct {
	NodeID             uint64
	OriginalConfidence float64
	RevisedConfidence  float64
	Depth              int
}

// CascadeStep records one hop of the weakening propagation.
type CascadeStep struct {
	NodeID   uint64
	ViaEdge  graph.EdgeType
	FromNode uint64
	Depth    int
}

// RevisionReport is the full result of a belief-revision query: this is a
// read-only analysis, it never mutates the graph.
type RevisionReport struct {
	Contradicted         []Contradicted
	Weakened             []Weakened
	InvalidatedDecisions []uint64
	TotalAffected        int
	Cascade              []CascadeStep
}

// Revise analyzes how a hypothesis would affect existing beliefs: it finds
// contradicting nodes via term overlap, vector similarity, negation
// detection, and explicit Contradicts edges, then cascades a weakening
// signal through CausedBy/Supports edges (factor decays as 0.7^depth).
func Revise(g *graph.Graph, tok *index.Tokenizer, p ReviseParams) RevisionReport {
	hypothesisTerms := uniqueSet(tok.Tokenize(p.Hypothesis))
	if len(hypothesisTerms) == 0 && p.HypothesisVector == nil {
		return RevisionReport{}
	}

	nodes := g.AllNodes()
	var contradicted []Contradicted
	contradictedIDs := map[uint64]bool{}

	for _, n := range nodes {
		nodeTerms := uniqueSet(tok.Tokenize(n.Content))
		overlap := intersectionCount(hypothesisTerms, nodeTerms)

		var textSim float64
		if len(hypothesisTerms) > 0 {
			textSim = float64(overlap) / float64(len(hypothesisTerms))
		}

		var vecSim float64
		if p.HypothesisVector != nil && len(n.Embedding) == len(p.HypothesisVector) && !allZero(n.Embedding) {
			vecSim = cosineSimilarity(p.HypothesisVector, n.Embedding)
		}

		relevance := textSim
		if p.HypothesisVector != nil {
			relevance = 0.5*textSim + 0.5*vecSim
		}
		if relevance < p.ContradictionThreshold {
			continue
		}

		lower := strings.ToLower(n.Content)
		hasNegation := false
		for _, w := range negationWords {
			if strings.Contains(lower, w) {
				hasNegation = true
				break
			}
		}

		hasContradictsEdge := len(g.OutEdges(n.ID, map[graph.EdgeType]bool{graph.Contradicts: true})) > 0 ||
			len(g.InEdges(n.ID, map[graph.EdgeType]bool{graph.Contradicts: true})) > 0
		isCorrection := n.EventType == graph.Correction

		if hasNegation || hasContradictsEdge || isCorrection {
			strength := relevance
			if hasContradictsEdge {
				strength *= 1.0
			} else {
				strength *= 0.8
			}
			if hasNegation {
				strength *= 1.0
			} else {
				strength *= 0.7
			}

			reason := "correction event with high similarity"
			if hasContradictsEdge {
				reason = "explicit Contradicts edge in graph"
			} else if hasNegation {
				reason = "negation detected in content"
			}

			contradictedIDs[n.ID] = true
			contradicted = append(contradicted, Contradicted{
				NodeID:   n.ID,
				Strength: clamp01(strength),
				Reason:   reason,
			})
		}
	}

	sortContradictedDesc(contradicted)

	var weakened []Weakened
	var cascade []CascadeStep
	visited := map[uint64]bool{}
	for id := range contradictedIDs {
		visited[id] = true
	}

	type queueItem struct {
		id        uint64
		depth     int
		weakening float64
	}
	var queue []queueItem
	for _, c := range contradicted {
		queue = append(queue, queueItem{id: c.NodeID, depth: 0, weakening: c.Strength})
	}

	maxDepth := p.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 5
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		for _, e := range g.InEdges(cur.id, map[graph.EdgeType]bool{graph.CausedBy: true, graph.Supports: true}) {
			dependentID := e.SourceID
			if visited[dependentID] {
				continue
			}
			visited[dependentID] = true

			depNode, err := g.Peek(dependentID)
			if err != nil {
				continue
			}

			decay := pow(cascadeDecayBase, cur.depth+1)
			effective := cur.weakening * e.Weight * decay
			revised := clamp01(depNode.Confidence - effective)

			weakened = append(weakened, Weakened{
				NodeID:             dependentID,
				OriginalConfidence: depNode.Confidence,
				RevisedConfidence:  revised,
				Depth:              cur.depth + 1,
			})
			cascade = append(cascade, CascadeStep{
				NodeID:   dependentID,
				ViaEdge:  e.EdgeType,
				FromNode: cur.id,
				Depth:    cur.depth + 1,
			})
			queue = append(queue, queueItem{id: dependentID, depth: cur.depth + 1, weakening: effective})
		}
	}

	affected := map[uint64]bool{}
	for id := range contradictedIDs {
		affected[id] = true
	}
	for _, w := range weakened {
		affected[w.NodeID] = true
	}

	var invalidated []uint64
	for id := range affected {
		n, err := g.Peek(id)
		if err == nil && n.EventType == graph.Decision {
			invalidated = append(invalidated, id)
		}
	}
	sortUint64Asc(invalidated)

	return RevisionReport{
		Contradicted:         contradicted,
		Weakened:             weakened,
		InvalidatedDecisions: invalidated,
		TotalAffected:        len(affected),
		Cascade:              cascade,
	}
}
