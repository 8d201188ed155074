package consolidation

import (
	"math"

	"github.com/dan-solli/agenticmemory/pkg/decay"
	"github.com/dan-solli/agenticmemory/pkg/graph"
)

func uniqueSet(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	return set
}

func anyNegation(tokens map[string]bool) bool {
	for t := range tokens {
		if negationWords[t] {
			return true
		}
	}
	return false
}

func jaccardSimilarity(a, b map[string]bool) float64 {
	union := len(a)
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	for t := range b {
		if !a[t] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
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

func decayScore(n *graph.Node, nowMicros int64) float64 {
	return decay.Score(decay.Input{
		Confidence:         n.Confidence,
		CreatedAtMicros:    n.CreatedAt,
		AccessCount:        n.AccessCount,
		LastAccessedMicros: n.LastAccessed,
		NowMicros:          nowMicros,
	}, decay.DefaultParams())
}
