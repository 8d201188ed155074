package correction

import (
	"math"
	"sort"
)

func uniqueSet(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	return set
}

func intersectionCount(a, b map[string]bool) int {
	n := 0
	for t := range a {
		if b[t] {
			n++
		}
	}
	return n
}

func allZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
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

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func pow(base float64, exp int) float64 {
	return math.Pow(base, float64(exp))
}

func sortContradictedDesc(c []Contradicted) {
	sort.Slice(c, func(i, j int) bool { return c[i].Strength > c[j].Strength })
}

func sortUint64Asc(v []uint64) {
	sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })
}
