// Package retrieval implements the Retrieval Engine (C6): BM25 text search,
// cosine vector search, RRF hybrid fusion, and grounding verdicts. Grounded
// structurally on the donor's ranked-search idiom (pkg/search/hybrid.go,
// pkg/search/vector.go) and algorithmically on the original engine's exact
// BM25/RRF formulas (SPEC_FULL.md SUPPLEMENTED FEATURES).
package retrieval

import (
	"math"
	"sort"

	"github.com/dan-solli/agenticmemory/pkg/index"
)

// BM25Params bundles the standard BM25 tuning constants.
type BM25Params struct {
	K1 float64
	B  float64
}

// DefaultBM25Params returns k1=1.2, b=0.75, the original engine's constants.
func DefaultBM25Params() BM25Params { return BM25Params{K1: 1.2, B: 0.75} }

// Scored pairs a node id with a relevance score.
type Scored struct {
	NodeID uint64
	Score  float64
}

// BM25Search scores every document containing at least one query term and
// returns the top-k, highest score first (ties broken by ascending id for
// determinism).
func BM25Search(term *index.TermIndex, tok *index.Tokenizer, query string, topK int, p BM25Params) []Scored {
	terms := tok.Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	docCount := float64(term.DocCount())
	avgDocLen := float64(term.AvgDocLength())
	if avgDocLen == 0 {
		avgDocLen = 1
	}

	docLen := map[uint64]float64{}
	scores := map[uint64]float64{}

	seen := map[string]bool{}
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true

		postings := term.Get(t)
		if len(postings) == 0 {
			continue
		}
		df := float64(len(postings))
		idf := math.Log(1 + (docCount-df+0.5)/(df+0.5))

		for _, post := range postings {
			if _, ok := docLen[post.NodeID]; !ok {
				docLen[post.NodeID] = estimateDocLength(term, post.NodeID)
			}
			dl := docLen[post.NodeID]
			tf := float64(post.Freq)
			denom := tf + p.K1*(1-p.B+p.B*dl/avgDocLen)
			scores[post.NodeID] += idf * (tf * (p.K1 + 1)) / denom
		}
	}

	out := make([]Scored, 0, len(scores))
	for id, s := range scores {
		out = append(out, Scored{NodeID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// estimateDocLength returns the node's exact recorded token count, falling
// back to the corpus average when unknown (e.g. after a reopen, since
// per-document length isn't part of the on-disk index layout).
func estimateDocLength(term *index.TermIndex, nodeID uint64) float64 {
	if l, ok := term.DocLength(nodeID); ok {
		return float64(l)
	}
	return float64(term.AvgDocLength())
}
