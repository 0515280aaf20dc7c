package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/metrics"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// SilverStore is the warehouse surface the silver stage needs.
type SilverStore interface {
	EnsureSilverTable(ctx context.Context, table string) error
	EnsureContentLinksTable(ctx context.Context, table string) error
	BackfillSilver(ctx context.Context, silverTable, bronzeTable string, win warehouse.Window) (deleted, inserted int64, err error)
	BackfillContentLinks(ctx context.Context, linksTable, silverTable string, win warehouse.Window) (deleted, inserted int64, err error)
}

// SilverCounts is the audit result of one silver backfill.
type SilverCounts struct {
	ArticlesDeleted  int64 `json:"articles_deleted"`
	ArticlesInserted int64 `json:"articles_inserted"`
	LinksDeleted     int64 `json:"links_deleted"`
	LinksInserted    int64 `json:"links_inserted"`
}

// SilverTransformer rebuilds the silver layer for a window from bronze,
// then regenerates the content-link fanout from the fresh silver rows.
type SilverTransformer struct {
	store       SilverStore
	silverTable string
	bronzeTable string
	linksTable  string
	logger      *zap.Logger
}

// NewSilverTransformer wires the stage.
func NewSilverTransformer(store SilverStore, silverTable, bronzeTable, linksTable string, logger *zap.Logger) *SilverTransformer {
	return &SilverTransformer{
		store:       store,
		silverTable: silverTable,
		bronzeTable: bronzeTable,
		linksTable:  linksTable,
		logger:      logger,
	}
}

// Run executes both backfills for the window. The article backfill runs
// before the fanout so the fanout always derives from the rows just
// written.
func (t *SilverTransformer) Run(ctx context.Context, win warehouse.Window) (SilverCounts, error) {
	started := time.Now()
	defer func() { metrics.ObserveStage("silver", time.Since(started)) }()

	if err := t.store.EnsureSilverTable(ctx, t.silverTable); err != nil {
		return SilverCounts{}, err
	}
	if err := t.store.EnsureContentLinksTable(ctx, t.linksTable); err != nil {
		return SilverCounts{}, err
	}

	var counts SilverCounts
	var err error
	counts.ArticlesDeleted, counts.ArticlesInserted, err = t.store.BackfillSilver(ctx, t.silverTable, t.bronzeTable, win)
	if err != nil {
		return SilverCounts{}, err
	}
	counts.LinksDeleted, counts.LinksInserted, err = t.store.BackfillContentLinks(ctx, t.linksTable, t.silverTable, win)
	if err != nil {
		return SilverCounts{}, err
	}

	metrics.ObserveRows(t.silverTable, "deleted", counts.ArticlesDeleted)
	metrics.ObserveRows(t.silverTable, "inserted", counts.ArticlesInserted)
	metrics.ObserveRows(t.linksTable, "deleted", counts.LinksDeleted)
	metrics.ObserveRows(t.linksTable, "inserted", counts.LinksInserted)

	t.logger.Info("Silver backfill complete",
		zap.String("window", win.String()),
		zap.Int64("articles_deleted", counts.ArticlesDeleted),
		zap.Int64("articles_inserted", counts.ArticlesInserted),
		zap.Int64("links_deleted", counts.LinksDeleted),
		zap.Int64("links_inserted", counts.LinksInserted))
	return counts, nil
}
