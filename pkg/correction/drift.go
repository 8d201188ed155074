package correction

import (
	"sort"

	"github.com/dan-solli/agenticmemory/pkg/graph"
	"github.com/dan-solli/agenticmemory/pkg/index"
)

// ChangeType classifies how one belief snapshot differs from its
// predecessor in a timeline.
type ChangeType string

const (
	ChangeInitial      ChangeType = "Initial"
	ChangeRefined      ChangeType = "Refined"
	ChangeCorrected    ChangeType = "Corrected"
	ChangeContradicted ChangeType = "Contradicted"
	ChangeReinforced   ChangeType = "Reinforced"
)

// contentPreviewLength bounds how much of a node's content a snapshot keeps.
const contentPreviewLength = 120

// instabilityLikelyThreshold is the fraction of corrections+contradictions
// among all changes above which a topic is judged likely to keep changing.
const instabilityLikelyThreshold = 0.3

// DriftParams configures drift detection.
type DriftParams struct {
	Topic        string
	TopicVector  []float32
	MaxResults   int
	MinRelevance float64
}

// BeliefSnapshot is one point-in-time state of a belief within a timeline.
type BeliefSnapshot struct {
	NodeID         uint64
	SessionID      uint64
	CreatedAt      int64
	Confidence     float64
	ContentPreview string
	Change         ChangeType
}

// BeliefTimeline tracks how one belief (or chain of superseding beliefs)
// evolved over time.
type BeliefTimeline struct {
	Snapshots         []BeliefSnapshot
	ChangeCount       int
	CorrectionCount   int
	ContradictionCount int
}

// DriftReport is the full result of a drift-detection query.
type DriftReport struct {
	Timelines       []BeliefTimeline
	Stability       float64
	LikelyToChange  bool
}

// DetectDrift tracks how beliefs about a topic evolved: it finds nodes
// relevant to the topic, groups them into Supersedes-chain timelines, and
// reports an overall stability score. Read-only.
func DetectDrift(g *graph.Graph, tok *index.Tokenizer, p DriftParams) DriftReport {
	topicTerms := uniqueSet(tok.Tokenize(p.Topic))
	if len(topicTerms) == 0 && p.TopicVector == nil {
		return DriftReport{Stability: 1.0}
	}

	type relevantNode struct {
		id        uint64
		relevance float64
	}
	var relevant []relevantNode

	for _, n := range g.AllNodes() {
		nodeTerms := uniqueSet(tok.Tokenize(n.Content))
		overlap := intersectionCount(topicTerms, nodeTerms)

		var textSim float64
		if len(topicTerms) > 0 {
			textSim = float64(overlap) / float64(len(topicTerms))
		}

		var vecSim float64
		if p.TopicVector != nil && len(n.Embedding) == len(p.TopicVector) && !allZero(n.Embedding) {
			if s := cosineSimilarity(p.TopicVector, n.Embedding); s > 0 {
				vecSim = s
			}
		}

		relevance := textSim
		if p.TopicVector != nil {
			relevance = 0.5*textSim + 0.5*vecSim
		}
		if relevance >= p.MinRelevance {
			relevant = append(relevant, relevantNode{id: n.ID, relevance: relevance})
		}
	}

	if len(relevant) == 0 {
		return DriftReport{Stability: 1.0}
	}

	sort.Slice(relevant, func(i, j int) bool { return relevant[i].relevance > relevant[j].relevance })
	relevantIDs := map[uint64]bool{}
	for _, r := range relevant {
		relevantIDs[r.id] = true
	}

	var chainRoots []uint64
	for _, r := range relevant {
		isSuperseded := false
		for _, e := range g.InEdges(r.id, map[graph.EdgeType]bool{graph.Supersedes: true}) {
			if relevantIDs[e.SourceID] {
				isSuperseded = true
				break
			}
		}
		if !isSuperseded {
			chainRoots = append(chainRoots, r.id)
		}
	}
	if len(chainRoots) == 0 {
		for i, r := range relevant {
			if p.MaxResults > 0 && i >= p.MaxResults {
				break
			}
			chainRoots = append(chainRoots, r.id)
		}
	}

	assigned := map[uint64]bool{}
	var timelines []BeliefTimeline

	for _, rootID := range chainRoots {
		if assigned[rootID] {
			continue
		}

		chainVisited := map[uint64]bool{rootID: true}
		chain := []uint64{rootID}
		assigned[rootID] = true

		current := rootID
		for {
			next, ok := supersededBy(g, current)
			if !ok || chainVisited[next] {
				break
			}
			chainVisited[next] = true
			chain = append(chain, next)
			assigned[next] = true
			current = next
		}

		current = rootID
		for {
			prev, ok := supersedingOf(g, current)
			if !ok || chainVisited[prev] {
				break
			}
			chainVisited[prev] = true
			chain = append([]uint64{prev}, chain...)
			assigned[prev] = true
			current = prev
		}

		createdAt := map[uint64]int64{}
		confidenceOf := map[uint64]float64{}
		for _, id := range chain {
			if n, err := g.Peek(id); err == nil {
				createdAt[id] = n.CreatedAt
				confidenceOf[id] = n.Confidence
			}
		}
		sort.Slice(chain, func(i, j int) bool { return createdAt[chain[i]] < createdAt[chain[j]] })

		var snapshots []BeliefSnapshot
		corrections, contradictions := 0, 0

		for i, nid := range chain {
			n, err := g.Peek(nid)
			if err != nil {
				continue
			}

			change := ChangeInitial
			if i > 0 {
				prevID := chain[i-1]
				hasSupersedes := edgeBetween(g, nid, prevID, graph.Supersedes)
				hasContradicts := edgeBetween(g, nid, prevID, graph.Contradicts) || edgeBetween(g, prevID, nid, graph.Contradicts)
				hasSupports := edgeBetween(g, nid, prevID, graph.Supports) || edgeBetween(g, prevID, nid, graph.Supports)

				switch {
				case hasContradicts:
					change = ChangeContradicted
				case n.EventType == graph.Correction || hasSupersedes:
					change = ChangeCorrected
				case hasSupports:
					change = ChangeReinforced
				default:
					if n.Confidence >= confidenceOf[prevID] {
						change = ChangeRefined
					} else {
						change = ChangeCorrected
					}
				}
			}

			switch change {
			case ChangeCorrected:
				corrections++
			case ChangeContradicted:
				contradictions++
			}

			preview := n.Content
			if len(preview) > contentPreviewLength {
				preview = preview[:contentPreviewLength] + "..."
			}

			snapshots = append(snapshots, BeliefSnapshot{
				NodeID:         n.ID,
				SessionID:      n.SessionID,
				CreatedAt:      n.CreatedAt,
				Confidence:     n.Confidence,
				ContentPreview: preview,
				Change:         change,
			})
		}

		if len(snapshots) > 0 {
			timelines = append(timelines, BeliefTimeline{
				Snapshots:          snapshots,
				ChangeCount:        len(snapshots) - 1,
				CorrectionCount:    corrections,
				ContradictionCount: contradictions,
			})
		}
	}

	for _, r := range relevant {
		if assigned[r.id] {
			continue
		}
		assigned[r.id] = true
		n, err := g.Peek(r.id)
		if err != nil {
			continue
		}
		preview := n.Content
		if len(preview) > contentPreviewLength {
			preview = preview[:contentPreviewLength] + "..."
		}
		timelines = append(timelines, BeliefTimeline{
			Snapshots: []BeliefSnapshot{{
				NodeID:         n.ID,
				SessionID:      n.SessionID,
				CreatedAt:      n.CreatedAt,
				Confidence:     n.Confidence,
				ContentPreview: preview,
				Change:         ChangeInitial,
			}},
		})
	}

	sort.Slice(timelines, func(i, j int) bool { return timelines[i].ChangeCount > timelines[j].ChangeCount })
	if p.MaxResults > 0 && len(timelines) > p.MaxResults {
		timelines = timelines[:p.MaxResults]
	}

	var totalChanges, totalCorrections, totalContradictions, totalSnapshots int
	for _, t := range timelines {
		totalChanges += t.ChangeCount
		totalCorrections += t.CorrectionCount
		totalContradictions += t.ContradictionCount
		totalSnapshots += len(t.Snapshots)
	}

	stability := 1.0
	if totalSnapshots > 1 {
		volatility := float64(totalCorrections+totalContradictions) / float64(totalSnapshots)
		stability = clamp01(1.0 - volatility)
	}

	likelyToChange := false
	if totalChanges > 0 {
		instabilityRatio := float64(totalCorrections+totalContradictions) / float64(totalChanges)
		likelyToChange = instabilityRatio > instabilityLikelyThreshold
	}

	return DriftReport{
		Timelines:      timelines,
		Stability:      stability,
		LikelyToChange: likelyToChange,
	}
}

func edgeBetween(g *graph.Graph, fromID, toID uint64, edgeType graph.EdgeType) bool {
	for _, e := range g.OutEdges(fromID, map[graph.EdgeType]bool{edgeType: true}) {
		if e.TargetID == toID {
			return true
		}
	}
	return false
}
