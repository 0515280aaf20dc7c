package api

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pybitesdata/blogpipe/internal/vectorstore"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vector, s.err
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.vector
	}
	return out, s.err
}

type stubHybridStore struct {
	results []vectorstore.SearchResult

	gotVector []float32
	gotText   string
	gotK      int
	gotDense  float64
	gotSparse float64
}

func (s *stubHybridStore) HybridSearch(_ context.Context, queryVector []float32, queryText string, k int, denseWeight, sparseWeight float64) ([]vectorstore.SearchResult, error) {
	s.gotVector = queryVector
	s.gotText = queryText
	s.gotK = k
	s.gotDense = denseWeight
	s.gotSparse = sparseWeight
	return s.results, nil
}

func TestSearchServicePassesQueryAndWeights(t *testing.T) {
	t.Parallel()

	store := &stubHybridStore{results: []vectorstore.SearchResult{{ID: "row-1_0"}}}
	svc := NewSearchService(&stubEmbedder{vector: []float32{0.5}}, store, 0.8, 0.2)

	results, err := svc.Search(context.Background(), "pytest tips", 4)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, []float32{0.5}, store.gotVector)
	require.Equal(t, "pytest tips", store.gotText)
	require.Equal(t, 4, store.gotK)
	require.Equal(t, 0.8, store.gotDense)
	require.Equal(t, 0.2, store.gotSparse)
}

func TestSearchServiceDefaultsNonPositiveWeights(t *testing.T) {
	t.Parallel()

	store := &stubHybridStore{}
	svc := NewSearchService(&stubEmbedder{vector: []float32{0.5}}, store, 0, -1)

	_, err := svc.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	require.Equal(t, vectorstore.DefaultDenseWeight, store.gotDense)
	require.Equal(t, vectorstore.DefaultSparseWeight, store.gotSparse)
}

func TestSearchServiceEmbedFailureIsFatal(t *testing.T) {
	t.Parallel()

	svc := NewSearchService(&stubEmbedder{err: errors.New("backend down")}, &stubHybridStore{}, 0.7, 0.3)
	_, err := svc.Search(context.Background(), "q", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "embed query")
}
