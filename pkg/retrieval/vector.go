package retrieval

import (
	"math"
	"sort"

	"github.com/dan-solli/agenticmemory/pkg/amemerr"
	"github.com/dan-solli/agenticmemory/pkg/graph"
)

// VectorSearch scores every node with an embedding by cosine similarity to
// query and returns the top-k, highest score first. Fails DimensionMismatch
// if query's length does not match the nodes' embedding dimension.
func VectorSearch(nodes []*graph.Node, query []float32, dim uint32, topK int) ([]Scored, error) {
	if dim != 0 && uint32(len(query)) != dim {
		return nil, amemerr.New("vector_search", amemerr.DimensionMismatch, "query embedding dimension mismatch")
	}

	out := make([]Scored, 0, len(nodes))
	for _, n := range nodes {
		if len(n.Embedding) == 0 {
			continue
		}
		if len(n.Embedding) != len(query) {
			continue
		}
		out = append(out, Scored{NodeID: n.ID, Score: cosineSimilarity(query, n.Embedding)})
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
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
