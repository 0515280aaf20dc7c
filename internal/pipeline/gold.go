package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/metrics"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// SilverReader fetches transformed rows for replication.
type SilverReader interface {
	FetchSilverWindow(ctx context.Context, table string, win warehouse.Window) ([]blog.SilverArticle, error)
}

// GoldWriter is the gold store surface the replication stage needs.
type GoldWriter interface {
	EnsureArticleTable(ctx context.Context, table string) error
	ReplicateWindow(ctx context.Context, table string, win warehouse.Window, rows []blog.SilverArticle, batchSize int) (deleted, inserted int64, err error)
}

// GoldCounts is the audit result of one replication run.
type GoldCounts struct {
	Fetched  int   `json:"fetched"`
	Deleted  int64 `json:"deleted"`
	Inserted int64 `json:"inserted"`
}

// GoldReplicator copies a silver window into the gold store. The windowed
// delete-then-insert makes the copy converge: re-running an unchanged
// window deletes what it inserts.
type GoldReplicator struct {
	silver      SilverReader
	gold        GoldWriter
	silverTable string
	goldTable   string
	batchSize   int
	logger      *zap.Logger
}

// NewGoldReplicator wires the stage.
func NewGoldReplicator(silver SilverReader, gold GoldWriter, silverTable, goldTable string, batchSize int, logger *zap.Logger) *GoldReplicator {
	return &GoldReplicator{
		silver:      silver,
		gold:        gold,
		silverTable: silverTable,
		goldTable:   goldTable,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Run replicates the window. An empty silver window still clears the gold
// window, so removals propagate.
func (g *GoldReplicator) Run(ctx context.Context, win warehouse.Window) (GoldCounts, error) {
	started := time.Now()
	defer func() { metrics.ObserveStage("gold", time.Since(started)) }()

	rows, err := g.silver.FetchSilverWindow(ctx, g.silverTable, win)
	if err != nil {
		return GoldCounts{}, err
	}
	if err := g.gold.EnsureArticleTable(ctx, g.goldTable); err != nil {
		return GoldCounts{}, err
	}
	deleted, inserted, err := g.gold.ReplicateWindow(ctx, g.goldTable, win, rows, g.batchSize)
	if err != nil {
		return GoldCounts{}, err
	}

	metrics.ObserveRows(g.goldTable, "deleted", deleted)
	metrics.ObserveRows(g.goldTable, "inserted", inserted)
	g.logger.Info("Gold replication complete",
		zap.String("window", win.String()),
		zap.Int("fetched", len(rows)),
		zap.Int64("deleted", deleted),
		zap.Int64("inserted", inserted))
	return GoldCounts{Fetched: len(rows), Deleted: deleted, Inserted: inserted}, nil
}
