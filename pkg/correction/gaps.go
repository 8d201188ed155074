package correction

import (
	"fmt"
	"sort"

	"github.com/dan-solli/agenticmemory/pkg/decay"
	"github.com/dan-solli/agenticmemory/pkg/graph"
)

// GapType is the closed set of knowledge-gap categories gap detection flags.
type GapType string

const (
	UnjustifiedDecision   GapType = "UnjustifiedDecision"
	SingleSourceInference GapType = "SingleSourceInference"
	LowConfidenceFound    GapType = "LowConfidenceFoundation"
	UnstableKnowledge     GapType = "UnstableKnowledge"
	StaleEvidence         GapType = "StaleEvidence"
)

// GapSort selects how DetectGaps orders its results.
type GapSort string

const (
	GapSortHighestImpact   GapSort = "highest_impact"
	GapSortLowestConfidence GapSort = "lowest_confidence"
	GapSortMostRecent      GapSort = "most_recent"
)

// staleEvidenceDecayThreshold is the decay score below which a Fact node
// with dependents counts as stale evidence.
const staleEvidenceDecayThreshold = 0.2

// GapParams configures gap detection.
type GapParams struct {
	ConfidenceThreshold float64
	MinSupportCount     int
	MaxResults          int
	SortBy              GapSort
	NowMicros           int64
}

// Gap is a single detected knowledge gap.
type Gap struct {
	NodeID          uint64
	Type            GapType
	Severity        float64
	Description     string
	DownstreamCount int
}

// GapSummary aggregates per-type counts and an overall health score.
type GapSummary struct {
	TotalGaps               int
	UnjustifiedDecisions    int
	SingleSourceInferences  int
	LowConfidenceFoundations int
	UnstableKnowledge       int
	StaleEvidence           int
	HealthScore             float64
}

// GapReport is the full result of a gap-detection pass.
type GapReport struct {
	Gaps    []Gap
	Summary GapSummary
}

// DetectGaps flags five categories of knowledge gap: Decision nodes with no
// justifying edge, Inference nodes below the minimum support count,
// low-confidence foundations with dependents, nodes on a Supersedes chain
// holding three or more other nodes, and stale Fact evidence with
// dependents. Read-only.
func DetectGaps(g *graph.Graph, p GapParams) GapReport {
	nodes := g.AllNodes()
	var gaps []Gap

	for _, n := range nodes {
		if n.EventType == graph.Decision {
			incoming := g.InEdges(n.ID, map[graph.EdgeType]bool{graph.CausedBy: true, graph.Supports: true})
			if len(incoming) == 0 {
				gaps = append(gaps, Gap{
					NodeID:          n.ID,
					Type:            UnjustifiedDecision,
					Severity:        0.9,
					Description:     fmt.Sprintf("Decision node %d has no CausedBy or Supports edges", n.ID),
					DownstreamCount: countDownstream(g, n.ID),
				})
			}
		}

		if n.EventType == graph.Inference {
			supportCount := len(g.InEdges(n.ID, map[graph.EdgeType]bool{graph.Supports: true}))
			if supportCount < p.MinSupportCount {
				gaps = append(gaps, Gap{
					NodeID:   n.ID,
					Type:     SingleSourceInference,
					Severity: 0.7,
					Description: fmt.Sprintf(
						"Inference node %d has only %d Supports edge(s), needs at least %d",
						n.ID, supportCount, p.MinSupportCount),
					DownstreamCount: countDownstream(g, n.ID),
				})
			}
		}

		if (n.EventType == graph.Fact || n.EventType == graph.Inference) && n.Confidence < p.ConfidenceThreshold {
			hasDependents := len(g.InEdges(n.ID, map[graph.EdgeType]bool{graph.CausedBy: true, graph.Supports: true})) > 0
			if hasDependents {
				gaps = append(gaps, Gap{
					NodeID:   n.ID,
					Type:     LowConfidenceFound,
					Severity: 1.0 - n.Confidence,
					Description: fmt.Sprintf(
						"Node %d has confidence %.2f (below %.2f) and is depended upon",
						n.ID, n.Confidence, p.ConfidenceThreshold),
					DownstreamCount: countDownstream(g, n.ID),
				})
			}
		}

		if supersedesCount := countSupersedesChain(g, n.ID); supersedesCount >= 3 {
			gaps = append(gaps, Gap{
				NodeID:   n.ID,
				Type:     UnstableKnowledge,
				Severity: clamp01(float64(supersedesCount) / 5.0),
				Description: fmt.Sprintf(
					"Node %d has been superseded %d times (unstable)", n.ID, supersedesCount),
				DownstreamCount: countDownstream(g, n.ID),
			})
		}

		if n.EventType == graph.Fact {
			score := decay.Score(decay.Input{
				Confidence:         n.Confidence,
				CreatedAtMicros:    n.CreatedAt,
				AccessCount:        n.AccessCount,
				LastAccessedMicros: n.LastAccessed,
				NowMicros:          p.NowMicros,
			}, decay.DefaultParams())
			if score < staleEvidenceDecayThreshold {
				hasDependents := len(g.InEdges(n.ID, map[graph.EdgeType]bool{graph.CausedBy: true, graph.Supports: true})) > 0
				if hasDependents {
					gaps = append(gaps, Gap{
						NodeID:   n.ID,
						Type:     StaleEvidence,
						Severity: 1.0 - score,
						Description: fmt.Sprintf(
							"Fact node %d has decay score %.2f and is depended upon", n.ID, score),
						DownstreamCount: countDownstream(g, n.ID),
					})
				}
			}
		}
	}

	switch p.SortBy {
	case GapSortHighestImpact:
		sort.Slice(gaps, func(i, j int) bool { return gaps[i].DownstreamCount > gaps[j].DownstreamCount })
	case GapSortMostRecent:
		createdAt := map[uint64]int64{}
		for _, n := range nodes {
			createdAt[n.ID] = n.CreatedAt
		}
		sort.Slice(gaps, func(i, j int) bool { return createdAt[gaps[i].NodeID] > createdAt[gaps[j].NodeID] })
	default: // GapSortLowestConfidence == highest severity first
		sort.Slice(gaps, func(i, j int) bool { return gaps[i].Severity > gaps[j].Severity })
	}

	summary := GapSummary{TotalGaps: len(gaps)}
	for _, gp := range gaps {
		switch gp.Type {
		case UnjustifiedDecision:
			summary.UnjustifiedDecisions++
		case SingleSourceInference:
			summary.SingleSourceInferences++
		case LowConfidenceFound:
			summary.LowConfidenceFoundations++
		case UnstableKnowledge:
			summary.UnstableKnowledge++
		case StaleEvidence:
			summary.StaleEvidence++
		}
	}
	if len(nodes) > 0 {
		summary.HealthScore = 1.0 - clamp01(float64(summary.TotalGaps)/float64(len(nodes)))
	} else {
		summary.HealthScore = 1.0
	}

	if p.MaxResults > 0 && len(gaps) > p.MaxResults {
		gaps = gaps[:p.MaxResults]
	}

	return GapReport{Gaps: gaps, Summary: summary}
}

// countDownstream counts nodes that transitively depend on id via
// CausedBy/Supports edges (not counting id itself).
func countDownstream(g *graph.Graph, id uint64) int {
	visited := map[uint64]bool{id: true}
	queue := []uint64{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.InEdges(cur, map[graph.EdgeType]bool{graph.CausedBy: true, graph.Supports: true}) {
			if !visited[e.SourceID] {
				visited[e.SourceID] = true
				queue = append(queue, e.SourceID)
			}
		}
	}
	return len(visited) - 1
}

// countSupersedesChain counts the total length of the Supersedes chain
// passing through id, walking both backward (who supersedes id) and forward
// (what id supersedes).
func countSupersedesChain(g *graph.Graph, id uint64) int {
	count := 0
	visited := map[uint64]bool{id: true}

	current := id
	for {
		next, ok := supersedingOf(g, current)
		if !ok || visited[next] {
			break
		}
		visited[next] = true
		current = next
		count++
	}

	current = id
	for {
		next, ok := supersededBy(g, current)
		if !ok || visited[next] {
			break
		}
		visited[next] = true
		current = next
		count++
	}

	return count
}
