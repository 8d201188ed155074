// Package consolidation implements the Consolidation component (C8): fact
// deduplication, contradiction linking, orphan/episode-compression reports
// (dry-run only, matching the original engine's "V1: dry-run only" scope),
// and inference promotion. Grounded on the original engine's maintenance.rs
// and structurally on the donor's GarbageCollect transactional-rewrite idiom
// (pkg/store/memory.go).
package consolidation

import (
	"fmt"
	"sort"

	"github.com/dan-solli/agenticmemory/pkg/graph"
	"github.com/dan-solli/agenticmemory/pkg/index"
)

// negationWords flags candidate contradiction pairs; kept local rather than
// shared with pkg/correction because the original engine uses two slightly
// different lists for belief revision vs. consolidation.
var negationWords = map[string]bool{
	"not": true, "never": true, "no": true, "neither": true, "nor": true,
	"cannot": true, "can't": true, "won't": true, "doesn't": true,
	"don't": true, "didn't": true, "isn't": true, "aren't": true,
	"wasn't": true, "weren't": true, "shouldn't": true, "wouldn't": true,
	"couldn't": true, "hardly": true, "barely": true, "false": true,
	"incorrect": true, "wrong": true, "untrue": true, "impossible": true,
	"deny": true, "denied": true, "disagree": true, "unlike": true,
	"opposite": true,
}

// Op is a single consolidation operation to run, in the Rust enum's order.
type Op int

const (
	OpDeduplicateFacts Op = iota
	OpPruneOrphans
	OpLinkContradictions
	OpCompressEpisodes
	OpPromoteInferences
)

// OpSpec bundles an operation with its threshold/parameter.
type OpSpec struct {
	Op              Op
	Threshold       float64 // DeduplicateFacts, LinkContradictions
	MaxDecay        float64 // PruneOrphans
	GroupSize       int     // CompressEpisodes
	MinAccessCount  uint64  // PromoteInferences
	MinConfidence   float64 // PromoteInferences
}

// Params configures a consolidation run.
type Params struct {
	SessionRange   *[2]uint64 // inclusive [lo, hi], nil means unfiltered
	Operations     []OpSpec
	DryRun         bool
	NowMicros      int64
}

// Action is a single taken-or-proposed consolidation step.
type Action struct {
	Operation     string
	Description   string
	AffectedNodes []uint64
}

// Report summarizes everything a consolidation run did (or would do).
type Report struct {
	Actions              []Action
	Deduplicated         int
	Pruned               int
	ContradictionsLinked int
	EpisodesCompressed   int
	InferencesPromoted   int
}

// Run executes every operation in params.Operations, in order, against g.
// PruneOrphans and CompressEpisodes never mutate the graph regardless of
// DryRun, matching the original engine's V1 scope.
func Run(g *graph.Graph, tok *index.Tokenizer, params Params) Report {
	report := Report{}
	for _, spec := range params.Operations {
		switch spec.Op {
		case OpDeduplicateFacts:
			deduplicateFacts(g, tok, spec.Threshold, params.SessionRange, params.DryRun, &report)
		case OpPruneOrphans:
			pruneOrphans(g, spec.MaxDecay, params.SessionRange, params.NowMicros, &report)
		case OpLinkContradictions:
			linkContradictions(g, tok, spec.Threshold, params.SessionRange, params.DryRun, &report)
		case OpCompressEpisodes:
			compressEpisodes(g, spec.GroupSize, params.SessionRange, &report)
		case OpPromoteInferences:
			promoteInferences(g, spec.MinAccessCount, spec.MinConfidence, params.SessionRange, params.DryRun, &report)
		}
	}
	return report
}

func inSessionRange(sessionID uint64, r *[2]uint64) bool {
	if r == nil {
		return true
	}
	return sessionID >= r[0] && sessionID <= r[1]
}

func orderedPair(a, b uint64) (uint64, uint64) {
	if a <= b {
		return a, b
	}
	return b, a
}

// deduplicateFacts merges near-duplicate Fact nodes: candidates must clear
// both a cosine-similarity threshold and a 0.5 token-Jaccard floor. The
// higher-confidence node survives and gains a Supersedes edge to the loser.
// There is no separate embedding-cluster index in this implementation, so
// every in-scope Fact is compared against every other (the original
// engine's own fallback path when its cluster map is empty).
func deduplicateFacts(g *graph.Graph, tok *index.Tokenizer, threshold float64, sessionRange *[2]uint64, dryRun bool, report *Report) {
	var facts []*graph.Node
	for _, n := range g.AllNodes() {
		if n.EventType == graph.Fact && inSessionRange(n.SessionID, sessionRange) {
			facts = append(facts, n)
		}
	}

	superseded := map[uint64]bool{}
	for i := 0; i < len(facts); i++ {
		if superseded[facts[i].ID] {
			continue
		}
		for j := i + 1; j < len(facts); j++ {
			if superseded[facts[j].ID] {
				continue
			}
			a, b := facts[i], facts[j]

			sim := cosineSimilarity(a.Embedding, b.Embedding)
			if sim < threshold {
				continue
			}

			tokensA := uniqueSet(tok.Tokenize(a.Content))
			tokensB := uniqueSet(tok.Tokenize(b.Content))
			if len(tokensA) == 0 && len(tokensB) == 0 {
				continue
			}
			jaccard := jaccardSimilarity(tokensA, tokensB)
			if jaccard < 0.5 {
				continue
			}

			winner, loser := a.ID, b.ID
			if b.Confidence > a.Confidence {
				winner, loser = b.ID, a.ID
			}
			superseded[loser] = true

			report.Actions = append(report.Actions, Action{
				Operation: "deduplicate_facts",
				Description: fmt.Sprintf(
					"Node %d supersedes duplicate node %d (cosine=%.3f, jaccard=%.3f)",
					winner, loser, sim, jaccard),
				AffectedNodes: []uint64{winner, loser},
			})
			report.Deduplicated++

			if !dryRun {
				_, _ = g.Link(winner, loser, graph.Supersedes, sim)
			}
		}
	}
}

// pruneOrphans reports (never removes) nodes with zero accesses, a decay
// score below maxDecay, and no incoming edges of any kind.
func pruneOrphans(g *graph.Graph, maxDecay float64, sessionRange *[2]uint64, nowMicros int64, report *Report) {
	var orphanIDs []uint64
	for _, n := range g.AllNodes() {
		if n.AccessCount != 0 || !inSessionRange(n.SessionID, sessionRange) {
			continue
		}
		if len(g.InEdges(n.ID, nil)) != 0 {
			continue
		}
		if decayScore(n, nowMicros) < maxDecay {
			orphanIDs = append(orphanIDs, n.ID)
		}
	}

	if len(orphanIDs) > 0 {
		report.Actions = append(report.Actions, Action{
			Operation: "prune_orphans",
			Description: fmt.Sprintf(
				"Would prune %d orphaned node(s) with decay_score < %.2f and no incoming edges",
				len(orphanIDs), maxDecay),
			AffectedNodes: orphanIDs,
		})
		report.Pruned += len(orphanIDs)
	}
}

// linkContradictions adds Contradicts edges between Fact/Inference pairs
// that are similar in content yet disagree on negation (exactly one side
// uses a negation word the other doesn't).
func linkContradictions(g *graph.Graph, tok *index.Tokenizer, threshold float64, sessionRange *[2]uint64, dryRun bool, report *Report) {
	var candidates []*graph.Node
	for _, n := range g.AllNodes() {
		if (n.EventType == graph.Fact || n.EventType == graph.Inference) && inSessionRange(n.SessionID, sessionRange) {
			candidates = append(candidates, n)
		}
	}

	existing := map[[2]uint64]bool{}
	for _, e := range g.AllEdges() {
		if e.EdgeType == graph.Contradicts {
			lo, hi := orderedPair(e.SourceID, e.TargetID)
			existing[[2]uint64{lo, hi}] = true
		}
	}

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			lo, hi := orderedPair(a.ID, b.ID)
			if existing[[2]uint64{lo, hi}] {
				continue
			}

			sim := cosineSimilarity(a.Embedding, b.Embedding)
			if sim < threshold {
				continue
			}

			tokensA := uniqueSet(tok.Tokenize(a.Content))
			tokensB := uniqueSet(tok.Tokenize(b.Content))
			negInA := anyNegation(tokensA)
			negInB := anyNegation(tokensB)
			if negInA == negInB {
				continue
			}

			existing[[2]uint64{lo, hi}] = true
			report.Actions = append(report.Actions, Action{
				Operation:     "link_contradictions",
				Description:   fmt.Sprintf("Nodes %d and %d appear contradictory (cosine=%.3f)", a.ID, b.ID, sim),
				AffectedNodes: []uint64{a.ID, b.ID},
			})
			report.ContradictionsLinked++

			if !dryRun {
				_, _ = g.Link(a.ID, b.ID, graph.Contradicts, sim)
			}
		}
	}
}

// compressEpisodes reports (never merges) runs of group_size or more
// contiguous same-session Episode nodes, ordered by creation time.
func compressEpisodes(g *graph.Graph, groupSize int, sessionRange *[2]uint64, report *Report) {
	var episodes []*graph.Node
	for _, n := range g.AllNodes() {
		if n.EventType == graph.Episode && inSessionRange(n.SessionID, sessionRange) {
			episodes = append(episodes, n)
		}
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].CreatedAt < episodes[j].CreatedAt })

	if len(episodes) < groupSize {
		return
	}

	var groups [][]uint64
	current := []uint64{episodes[0].ID}
	currentSession := episodes[0].SessionID

	flush := func() {
		if len(current) >= groupSize {
			groups = append(groups, current)
		}
	}

	for _, ep := range episodes[1:] {
		if ep.SessionID == currentSession {
			current = append(current, ep.ID)
		} else {
			flush()
			current = []uint64{ep.ID}
			currentSession = ep.SessionID
		}
	}
	flush()

	for _, group := range groups {
		report.Actions = append(report.Actions, Action{
			Operation:     "compress_episodes",
			Description:   fmt.Sprintf("Would compress %d contiguous episode(s) into a summary", len(group)),
			AffectedNodes: group,
		})
		report.EpisodesCompressed += len(group)
	}
}

// promoteInferences flips event_type from Inference to Fact for nodes that
// have cleared both an access-count and confidence floor.
func promoteInferences(g *graph.Graph, minAccess uint64, minConfidence float64, sessionRange *[2]uint64, dryRun bool, report *Report) {
	var eligible []uint64
	for _, n := range g.AllNodes() {
		if n.EventType == graph.Inference && n.AccessCount >= minAccess && n.Confidence >= minConfidence && inSessionRange(n.SessionID, sessionRange) {
			eligible = append(eligible, n.ID)
		}
	}

	for _, id := range eligible {
		report.Actions = append(report.Actions, Action{
			Operation:     "promote_inferences",
			Description:   fmt.Sprintf("Promote inference node %d to fact", id),
			AffectedNodes: []uint64{id},
		})
		report.InferencesPromoted++

		if !dryRun {
			g.PromoteToFact(id)
		}
	}
}
