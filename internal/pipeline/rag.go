package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/embedding"
	"github.com/pybitesdata/blogpipe/internal/metrics"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// GoldReader fetches business-ready rows for ingestion.
type GoldReader interface {
	FetchWindow(ctx context.Context, table string, win warehouse.Window) ([]blog.SilverArticle, error)
}

// Splitter turns article paragraphs into embedding-sized chunks.
type Splitter interface {
	Chunk(paragraphs []string) []string
}

// VectorSink persists embedded chunks.
type VectorSink interface {
	Upsert(ctx context.Context, chunks []blog.DocumentChunk) error
}

// IngestorConfig holds the chunk/embed stage's knobs.
type IngestorConfig struct {
	GoldTable   string
	GroupSize   int // articles fetched into one processing group
	Concurrency int // articles embedded at once within a group
}

// ChunkEmbedIngestor turns a window of gold articles into embedded chunks
// in the vector store. Chunk ids embed the article row id, so re-ingesting
// an article replaces its chunks rather than duplicating them.
type ChunkEmbedIngestor struct {
	gold     GoldReader
	splitter Splitter
	embedder embedding.Embedder
	sink     VectorSink
	cfg      IngestorConfig
	logger   *zap.Logger
}

// NewChunkEmbedIngestor wires the stage.
func NewChunkEmbedIngestor(gold GoldReader, splitter Splitter, embedder embedding.Embedder, sink VectorSink, cfg IngestorConfig, logger *zap.Logger) *ChunkEmbedIngestor {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &ChunkEmbedIngestor{
		gold:     gold,
		splitter: splitter,
		embedder: embedder,
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run ingests the window. Articles with no usable content are skipped; an
// embedding or upsert failure marks that article failed and the run
// continues. Every input article lands in exactly one report bucket.
func (c *ChunkEmbedIngestor) Run(ctx context.Context, win warehouse.Window) (*Report, error) {
	started := time.Now()
	defer func() { metrics.ObserveStage("rag", time.Since(started)) }()

	articles, err := c.gold.FetchWindow(ctx, c.cfg.GoldTable, win)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for start := 0; start < len(articles); start += c.cfg.GroupSize {
		end := min(start+c.cfg.GroupSize, len(articles))
		group := articles[start:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.Concurrency)
		for _, article := range group {
			g.Go(func() error {
				c.ingestOne(gctx, article, report)
				return nil
			})
		}
		_ = g.Wait()
	}

	report.LogSummary(c.logger, "rag", len(articles))
	metrics.ObserveChunks(report.Chunks())
	return report, nil
}

func (c *ChunkEmbedIngestor) ingestOne(ctx context.Context, article blog.SilverArticle, report *Report) {
	chunks := c.splitter.Chunk(article.Content)
	if len(chunks) == 0 {
		c.logger.Debug("Skipping article with no usable content",
			zap.String("url", article.URL))
		report.AddSkipped()
		metrics.ObserveBlog("rag", "skipped")
		return
	}

	vectors, err := c.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		report.AddFailed(article.URL, err)
		metrics.ObserveBlog("rag", "failed")
		return
	}

	meta, err := json.Marshal(blog.ChunkMetadata{
		RowID:         article.RowID,
		URL:           article.URL,
		DatePublished: article.DatePublished.Format(time.RFC3339),
		DateModified:  article.DateModified.Format(time.RFC3339),
		Title:         article.Title,
		Author:        article.Author,
		Tags:          article.Tags,
	})
	if err != nil {
		report.AddFailed(article.URL, err)
		metrics.ObserveBlog("rag", "failed")
		return
	}

	docs := make([]blog.DocumentChunk, len(chunks))
	for i, content := range chunks {
		docs[i] = blog.DocumentChunk{
			ID:          fmt.Sprintf("%s_%d", article.RowID, i),
			Content:     content,
			DenseVector: vectors[i],
			Metadata:    string(meta),
		}
	}

	if err := c.sink.Upsert(ctx, docs); err != nil {
		report.AddFailed(article.URL, err)
		metrics.ObserveBlog("rag", "failed")
		return
	}
	report.AddProcessed()
	report.AddChunks(len(docs))
	metrics.ObserveBlog("rag", "processed")
}
