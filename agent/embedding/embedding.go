// Package embedding ranks candidate texts by vector similarity for the
// retrieval-backed stages.
package embedding

import "math"

// Cosine returns the cosine similarity of two vectors, 0 when either is
// empty or zero-length in magnitude.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TopK returns the indices of the k candidates most similar to query, best
// first. Indices in skip are excluded.
func TopK(query []float64, candidates [][]float64, k int, skip map[int]bool) []int {
	type scored struct {
		idx   int
		score float64
	}

	ranked := make([]scored, 0, len(candidates))
	for i, cand := range candidates {
		if skip[i] {
			continue
		}
		ranked = append(ranked, scored{idx: i, score: Cosine(query, cand)})
	}

	// insertion sort; candidate sets here are tiny
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]int, 0, k)
	for _, r := range ranked[:k] {
		out = append(out, r.idx)
	}
	return out
}
