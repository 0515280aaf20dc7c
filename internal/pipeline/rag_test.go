package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/metrics"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

func init() {
	metrics.Init()
}

func ragWindow(t *testing.T) warehouse.Window {
	t.Helper()
	now := time.Date(2026, time.August, 23, 0, 0, 0, 0, time.UTC)
	win, err := warehouse.NewWindow(2024, 1, 2024, 1, now)
	require.NoError(t, err)
	return win
}

type fakeGoldReader struct {
	articles []blog.SilverArticle
	err      error
}

func (f *fakeGoldReader) FetchWindow(context.Context, string, warehouse.Window) ([]blog.SilverArticle, error) {
	return f.articles, f.err
}

// sentenceSplitter yields one chunk per paragraph, no tokenizer involved.
type sentenceSplitter struct{}

func (sentenceSplitter) Chunk(paragraphs []string) []string {
	var out []string
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

type fakeEmbedder struct {
	failFor string // substring of a chunk that triggers failure
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.failFor != "" && strings.Contains(text, f.failFor) {
		return nil, errors.New("embedding backend unavailable")
	}
	return []float32{float32(len(text))}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeVectorSink struct {
	mu      sync.Mutex
	upserts [][]blog.DocumentChunk
	err     error
}

func (f *fakeVectorSink) Upsert(_ context.Context, chunks []blog.DocumentChunk) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, chunks)
	return nil
}

func (f *fakeVectorSink) all() []blog.DocumentChunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []blog.DocumentChunk
	for _, batch := range f.upserts {
		out = append(out, batch...)
	}
	return out
}

func ragArticles(n int) []blog.SilverArticle {
	out := make([]blog.SilverArticle, n)
	for i := range out {
		out[i] = blog.SilverArticle{
			RowID:        fmt.Sprintf("row-%d", i),
			URL:          fmt.Sprintf("https://pybit.es/articles/n%d/", i),
			Title:        fmt.Sprintf("Article %d", i),
			Author:       "Bob",
			Tags:         []string{"python"},
			DateModified: time.Date(2024, time.January, 10+i, 0, 0, 0, 0, time.UTC),
			Content:      []string{"First paragraph.", "Second paragraph."},
		}
	}
	return out
}

func TestChunkEmbedIngestorAccountsForEveryArticle(t *testing.T) {
	t.Parallel()

	articles := ragArticles(7)
	articles[2].Content = nil                  // skipped
	articles[5].Content = []string{"  ", "\t"} // skipped

	sink := &fakeVectorSink{}
	ing := NewChunkEmbedIngestor(
		&fakeGoldReader{articles: articles},
		sentenceSplitter{},
		&fakeEmbedder{},
		sink,
		IngestorConfig{GoldTable: "gold_blogs", GroupSize: 3, Concurrency: 2},
		zap.NewNop(),
	)

	report, err := ing.Run(context.Background(), ragWindow(t))
	require.NoError(t, err)
	require.Equal(t, 5, report.Processed())
	require.Equal(t, 2, report.Skipped())
	require.Zero(t, report.Failed())
	require.Equal(t, len(articles), report.Total())
	require.Equal(t, 10, report.Chunks())
	require.Len(t, sink.all(), 10)
}

func TestChunkEmbedIngestorIsolatesEmbeddingFailures(t *testing.T) {
	t.Parallel()

	articles := ragArticles(4)
	articles[1].Content = []string{"poison paragraph"}

	sink := &fakeVectorSink{}
	ing := NewChunkEmbedIngestor(
		&fakeGoldReader{articles: articles},
		sentenceSplitter{},
		&fakeEmbedder{failFor: "poison"},
		sink,
		IngestorConfig{GoldTable: "gold_blogs"},
		zap.NewNop(),
	)

	report, err := ing.Run(context.Background(), ragWindow(t))
	require.NoError(t, err)
	require.Equal(t, 3, report.Processed())
	require.Equal(t, 1, report.Failed())
	require.Equal(t, len(articles), report.Total())

	failures := report.Failures()
	require.Len(t, failures, 1)
	require.Equal(t, articles[1].URL, failures[0].Item)
}

func TestChunkEmbedIngestorChunkIDsEmbedRowID(t *testing.T) {
	t.Parallel()

	sink := &fakeVectorSink{}
	ing := NewChunkEmbedIngestor(
		&fakeGoldReader{articles: ragArticles(1)},
		sentenceSplitter{},
		&fakeEmbedder{},
		sink,
		IngestorConfig{GoldTable: "gold_blogs"},
		zap.NewNop(),
	)

	_, err := ing.Run(context.Background(), ragWindow(t))
	require.NoError(t, err)

	chunks := sink.all()
	require.Len(t, chunks, 2)
	require.Equal(t, "row-0_0", chunks[0].ID)
	require.Equal(t, "row-0_1", chunks[1].ID)
	require.Contains(t, chunks[0].Metadata, `"row_id":"row-0"`)
	require.Contains(t, chunks[0].Metadata, `"url":"https://pybit.es/articles/n0/"`)
}

func TestChunkEmbedIngestorFetchErrorIsFatal(t *testing.T) {
	t.Parallel()

	ing := NewChunkEmbedIngestor(
		&fakeGoldReader{err: errors.New("disk corrupted")},
		sentenceSplitter{},
		&fakeEmbedder{},
		&fakeVectorSink{},
		IngestorConfig{GoldTable: "gold_blogs"},
		zap.NewNop(),
	)

	_, err := ing.Run(context.Background(), ragWindow(t))
	require.Error(t, err)
}
