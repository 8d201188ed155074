package retrieval

import (
	"sort"

	"github.com/dan-solli/agenticmemory/pkg/graph"
	"github.com/dan-solli/agenticmemory/pkg/index"
)

// FusionParams tunes the reciprocal-rank-fusion combination of the text and
// vector rankings.
type FusionParams struct {
	K       float64
	WText   float64
	WVector float64
}

// DefaultFusionParams returns k=60, w_text=0.6, w_vec=0.4, the original
// engine's hybrid-search defaults.
func DefaultFusionParams() FusionParams { return FusionParams{K: 60, WText: 0.6, WVector: 0.4} }

// overfetchFactor is how far past topK each engine is queried before
// fusion, so a document ranked outside the final topK by one engine can
// still surface via a strong showing in the other.
const overfetchFactor = 4

// HybridSearch runs BM25 and vector search independently at topK*4 each,
// then fuses their rankings via reciprocal rank fusion. createdAt is used
// only to break score ties (newer wins).
func HybridSearch(
	term *index.TermIndex,
	tok *index.Tokenizer,
	nodes []*graph.Node,
	query string,
	queryEmbedding []float32,
	dim uint32,
	topK int,
	fp FusionParams,
) ([]Scored, error) {
	fetchK := topK * overfetchFactor
	if fetchK <= 0 {
		fetchK = overfetchFactor
	}

	textRanked := BM25Search(term, tok, query, fetchK, DefaultBM25Params())

	var vecRanked []Scored
	if len(queryEmbedding) > 0 {
		var err error
		vecRanked, err = VectorSearch(nodes, queryEmbedding, dim, fetchK)
		if err != nil {
			return nil, err
		}
	}

	createdAt := make(map[uint64]int64, len(nodes))
	for _, n := range nodes {
		createdAt[n.ID] = n.CreatedAt
	}

	rankOf := func(ranked []Scored) map[uint64]int {
		r := make(map[uint64]int, len(ranked))
		for i, s := range ranked {
			r[s.NodeID] = i + 1 // 1-based rank
		}
		return r
	}
	textRank := rankOf(textRanked)
	vecRank := rankOf(vecRanked)

	seen := map[uint64]bool{}
	for id := range textRank {
		seen[id] = true
	}
	for id := range vecRank {
		seen[id] = true
	}

	out := make([]Scored, 0, len(seen))
	for id := range seen {
		var score float64
		if r, ok := textRank[id]; ok {
			score += fp.WText / (fp.K + float64(r))
		}
		if r, ok := vecRank[id]; ok {
			score += fp.WVector / (fp.K + float64(r))
		}
		out = append(out, Scored{NodeID: id, Score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return createdAt[out[i].NodeID] > createdAt[out[j].NodeID]
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}
