package api

import (
	"context"
	"fmt"

	"github.com/pybitesdata/blogpipe/internal/embedding"
	"github.com/pybitesdata/blogpipe/internal/vectorstore"
)

// HybridStore is the vector store surface the search service needs.
type HybridStore interface {
	HybridSearch(ctx context.Context, queryVector []float32, queryText string, k int, denseWeight, sparseWeight float64) ([]vectorstore.SearchResult, error)
}

// SearchService embeds the query and runs hybrid retrieval.
type SearchService struct {
	embedder     embedding.Embedder
	store        HybridStore
	denseWeight  float64
	sparseWeight float64
}

// NewSearchService wires an embedder to a vector store. Non-positive
// weights fall back to the store defaults.
func NewSearchService(embedder embedding.Embedder, store HybridStore, denseWeight, sparseWeight float64) *SearchService {
	if denseWeight <= 0 {
		denseWeight = vectorstore.DefaultDenseWeight
	}
	if sparseWeight <= 0 {
		sparseWeight = vectorstore.DefaultSparseWeight
	}
	return &SearchService{
		embedder:     embedder,
		store:        store,
		denseWeight:  denseWeight,
		sparseWeight: sparseWeight,
	}
}

// Search embeds the query text and fuses dense and sparse retrieval.
func (s *SearchService) Search(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.HybridSearch(ctx, vector, query, k, s.denseWeight, s.sparseWeight)
}
