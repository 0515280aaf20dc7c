package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func results(ids ...string) []SearchResult {
	out := make([]SearchResult, len(ids))
	for i, id := range ids {
		out[i] = SearchResult{ID: id, Content: "content " + id}
	}
	return out
}

func TestFuseRRFAccumulatesBothLists(t *testing.T) {
	t.Parallel()

	dense := results("a", "b")
	sparse := results("b", "c")

	fused := FuseRRF(dense, sparse, DefaultDenseWeight, DefaultSparseWeight, 10)
	require.Len(t, fused, 3)

	// "b" appears in both lists so it must outrank single-list documents.
	require.Equal(t, "b", fused[0].ID)
	wantB := DefaultDenseWeight/float64(rrfK+2) + DefaultSparseWeight/float64(rrfK+1)
	require.InDelta(t, wantB, fused[0].Score, 1e-12)

	wantA := DefaultDenseWeight / float64(rrfK+1)
	require.InDelta(t, wantA, fused[1].Score, 1e-12)
	require.Equal(t, "a", fused[1].ID)
	require.Equal(t, "c", fused[2].ID)
}

func TestFuseRRFWeightsShiftTheOrder(t *testing.T) {
	t.Parallel()

	dense := results("dense-top")
	sparse := results("sparse-top")

	fused := FuseRRF(dense, sparse, 0.9, 0.1, 10)
	require.Equal(t, "dense-top", fused[0].ID)

	fused = FuseRRF(dense, sparse, 0.1, 0.9, 10)
	require.Equal(t, "sparse-top", fused[0].ID)
}

func TestFuseRRFTiesBreakOnID(t *testing.T) {
	t.Parallel()

	// Same rank, same weight: scores tie exactly.
	fused := FuseRRF(results("zzz"), results("aaa"), 0.5, 0.5, 10)
	require.Equal(t, "aaa", fused[0].ID)
	require.Equal(t, "zzz", fused[1].ID)
}

func TestFuseRRFTruncatesToK(t *testing.T) {
	t.Parallel()

	fused := FuseRRF(results("a", "b", "c", "d"), nil, 1.0, 0.0, 2)
	require.Len(t, fused, 2)
	require.Equal(t, "a", fused[0].ID)
	require.Equal(t, "b", fused[1].ID)
}

func TestFuseRRFEmptyInputs(t *testing.T) {
	t.Parallel()

	require.Empty(t, FuseRRF(nil, nil, 0.7, 0.3, 5))
}
