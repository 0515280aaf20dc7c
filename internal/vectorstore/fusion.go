package vectorstore

import "sort"

// rrfK is the standard reciprocal-rank-fusion dampening constant.
const rrfK = 60

// SearchResult is one retrieved chunk with its fused or raw score.
type SearchResult struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Metadata string  `json:"metadata"`
	Score    float64 `json:"score"`
}

// FuseRRF merges a dense and a sparse result list by weighted reciprocal
// rank. Each document scores weight/(rrfK+rank) per list it appears in,
// ranks being 1-based positions; documents in both lists accumulate both
// contributions. Ties break on document id for determinism.
func FuseRRF(dense, sparse []SearchResult, denseWeight, sparseWeight float64, k int) []SearchResult {
	type fused struct {
		result SearchResult
		score  float64
	}
	byID := make(map[string]*fused)

	accumulate := func(results []SearchResult, weight float64) {
		for rank, r := range results {
			f, ok := byID[r.ID]
			if !ok {
				f = &fused{result: r}
				byID[r.ID] = f
			}
			f.score += weight / float64(rrfK+rank+1)
		}
	}
	accumulate(dense, denseWeight)
	accumulate(sparse, sparseWeight)

	merged := make([]SearchResult, 0, len(byID))
	for _, f := range byID {
		r := f.result
		r.Score = f.score
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if k > 0 && len(merged) > k {
		merged = merged[:k]
	}
	return merged
}
