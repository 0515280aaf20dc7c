package embedding

import (
	"context"
	"fmt"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var _ Embedder = (*OpenAI)(nil)

// EmbeddingsService is the slice of the OpenAI client the embedder calls.
// Tests substitute a fake here instead of stubbing HTTP.
type EmbeddingsService interface {
	New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// OpenAI turns article chunks and search queries into dense vectors via the
// OpenAI embeddings endpoint.
type OpenAI struct {
	embeddings EmbeddingsService
	model      openai.EmbeddingModel
}

// NewOpenAI builds an embedder against the live API.
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		embeddings: client.Embeddings,
		model:      openai.EmbeddingModel(model),
	}
}

// NewWithService wires an alternative backend (primarily for testing).
func NewWithService(svc EmbeddingsService, model string) *OpenAI {
	return &OpenAI{embeddings: svc, model: openai.EmbeddingModel(model)}
}

// Embed vectorizes a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: no data returned")
	}
	return toFloat32(resp.Data[0].Embedding), nil
}

// EmbedBatch vectorizes texts in one round trip. The API attaches an Index
// to each item and does not promise response order, so results are sorted by
// Index before returning; position i always corresponds to texts[i].
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := o.request(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed batch: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})
	out := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		out[i] = toFloat32(data.Embedding)
	}
	return out, nil
}

// ModelName reports the configured embedding model.
func (o *OpenAI) ModelName() string {
	return string(o.model)
}

func (o *OpenAI) request(ctx context.Context, inputs []string) (*openai.CreateEmbeddingResponse, error) {
	resp, err := o.embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.F[openai.EmbeddingNewParamsInputUnion](
			openai.EmbeddingNewParamsInputArrayOfStrings(inputs),
		),
		Model: openai.F(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings call: %w", err)
	}
	return resp, nil
}

// toFloat32 narrows the API's float64 payload to the float32 the vector
// store persists.
func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
