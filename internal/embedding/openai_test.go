package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"
)

type fakeEmbeddingsService struct {
	resp *openai.CreateEmbeddingResponse
	err  error

	gotParams openai.EmbeddingNewParams
}

func (f *fakeEmbeddingsService) New(_ context.Context, params openai.EmbeddingNewParams, _ ...option.RequestOption) (*openai.CreateEmbeddingResponse, error) {
	f.gotParams = params
	return f.resp, f.err
}

func embeddingData(index int64, values ...float64) openai.Embedding {
	return openai.Embedding{Index: index, Embedding: values}
}

func TestEmbedReturnsVector(t *testing.T) {
	t.Parallel()

	svc := &fakeEmbeddingsService{
		resp: &openai.CreateEmbeddingResponse{
			Data: []openai.Embedding{embeddingData(0, 0.1, 0.2, 0.3)},
		},
	}
	e := NewWithService(svc, "text-embedding-3-small")

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	require.Equal(t, "text-embedding-3-small", e.ModelName())
}

func TestEmbedNoDataIsAnError(t *testing.T) {
	t.Parallel()

	svc := &fakeEmbeddingsService{resp: &openai.CreateEmbeddingResponse{}}
	e := NewWithService(svc, "text-embedding-3-small")

	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no data returned")
}

func TestEmbedPropagatesBackendError(t *testing.T) {
	t.Parallel()

	svc := &fakeEmbeddingsService{err: errors.New("rate limited")}
	e := NewWithService(svc, "text-embedding-3-small")

	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
}

func TestEmbedBatchOrdersByIndex(t *testing.T) {
	t.Parallel()

	// Responses may arrive out of order; Index is authoritative.
	svc := &fakeEmbeddingsService{
		resp: &openai.CreateEmbeddingResponse{
			Data: []openai.Embedding{
				embeddingData(1, 2.0),
				embeddingData(0, 1.0),
				embeddingData(2, 3.0),
			},
		},
	}
	e := NewWithService(svc, "text-embedding-3-small")

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1.0}, {2.0}, {3.0}}, vecs)
}

func TestEmbedBatchCountMismatchIsAnError(t *testing.T) {
	t.Parallel()

	svc := &fakeEmbeddingsService{
		resp: &openai.CreateEmbeddingResponse{
			Data: []openai.Embedding{embeddingData(0, 1.0)},
		},
	}
	e := NewWithService(svc, "text-embedding-3-small")

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected 2 embeddings, got 1")
}

func TestEmbedBatchEmptyInputSkipsTheAPI(t *testing.T) {
	t.Parallel()

	svc := &fakeEmbeddingsService{err: errors.New("must not be called")}
	e := NewWithService(svc, "text-embedding-3-small")

	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, vecs)
}
