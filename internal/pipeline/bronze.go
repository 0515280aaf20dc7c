package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/metrics"
)

// RawReader loads parsed articles back out of raw object storage.
type RawReader interface {
	ReadPartitioned(ctx context.Context, prefix string) ([]blog.Article, error)
}

// BronzeStore is the warehouse surface the bronze stage needs.
type BronzeStore interface {
	EnsureBronzeTable(ctx context.Context, table string) error
	MergeArticles(ctx context.Context, table string, articles []blog.Article) error
	CountRows(ctx context.Context, table string) (int64, error)
}

// BronzeLoader merges every raw partition into the bronze table. The merge
// is idempotent, so loading everything each run is correct; only new or
// changed rows land.
type BronzeLoader struct {
	raw    RawReader
	store  BronzeStore
	table  string
	prefix string
	logger *zap.Logger
}

// NewBronzeLoader wires the stage.
func NewBronzeLoader(raw RawReader, store BronzeStore, table, prefix string, logger *zap.Logger) *BronzeLoader {
	return &BronzeLoader{raw: raw, store: store, table: table, prefix: prefix, logger: logger}
}

// Run reads all raw partitions and merges them into bronze. Returns how
// many articles were read from raw storage and the bronze row count after
// the merge.
func (b *BronzeLoader) Run(ctx context.Context) (read int, total int64, err error) {
	started := time.Now()
	defer func() { metrics.ObserveStage("bronze", time.Since(started)) }()

	articles, err := b.raw.ReadPartitioned(ctx, b.prefix)
	if err != nil {
		return 0, 0, err
	}
	if err := b.store.EnsureBronzeTable(ctx, b.table); err != nil {
		return 0, 0, err
	}
	if err := b.store.MergeArticles(ctx, b.table, articles); err != nil {
		return 0, 0, err
	}
	total, err = b.store.CountRows(ctx, b.table)
	if err != nil {
		return 0, 0, err
	}

	metrics.ObserveRows(b.table, "staged", int64(len(articles)))
	b.logger.Info("Bronze load complete",
		zap.String("table", b.table),
		zap.Int("read", len(articles)),
		zap.Int64("total_rows", total))
	return len(articles), total, nil
}
