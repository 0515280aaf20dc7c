package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/metrics"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// LinkSource fetches the content-link fanout rows for a window.
type LinkSource interface {
	FetchContentLinks(ctx context.Context, table string, win warehouse.Window) ([]blog.ContentLinkRow, error)
}

// LinkClassifier probes a batch of links and classifies each one.
type LinkClassifier interface {
	CheckAll(ctx context.Context, links []blog.ContentLinkRow) []blog.LinkStatusRow
}

// LinkStatusSink persists probe results in the gold store.
type LinkStatusSink interface {
	EnsureLinkStatusTable(ctx context.Context, table string) error
	ReplaceLinkStatuses(ctx context.Context, table string, win warehouse.Window, statuses []blog.LinkStatusRow, batchSize int) (deleted, inserted int64, err error)
}

// LinkCounts is the audit result of one liveness run.
type LinkCounts struct {
	Probed   int   `json:"probed"`
	Deleted  int64 `json:"deleted"`
	Inserted int64 `json:"inserted"`
}

// LinkAuditor probes every content link in a window and replaces the
// window's rows in the link status table with the fresh classifications.
type LinkAuditor struct {
	source      LinkSource
	checker     LinkClassifier
	sink        LinkStatusSink
	linksTable  string
	statusTable string
	batchSize   int
	logger      *zap.Logger
}

// NewLinkAuditor wires the stage.
func NewLinkAuditor(source LinkSource, checker LinkClassifier, sink LinkStatusSink, linksTable, statusTable string, batchSize int, logger *zap.Logger) *LinkAuditor {
	return &LinkAuditor{
		source:      source,
		checker:     checker,
		sink:        sink,
		linksTable:  linksTable,
		statusTable: statusTable,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Run probes the window's links. A window with no links still clears the
// status window, mirroring the other backfills.
func (l *LinkAuditor) Run(ctx context.Context, win warehouse.Window) (LinkCounts, error) {
	started := time.Now()
	defer func() { metrics.ObserveStage("links", time.Since(started)) }()

	links, err := l.source.FetchContentLinks(ctx, l.linksTable, win)
	if err != nil {
		return LinkCounts{}, err
	}
	statuses := l.checker.CheckAll(ctx, links)
	for _, st := range statuses {
		metrics.ObserveLink(st.Status)
	}

	if err := l.sink.EnsureLinkStatusTable(ctx, l.statusTable); err != nil {
		return LinkCounts{}, err
	}
	deleted, inserted, err := l.sink.ReplaceLinkStatuses(ctx, l.statusTable, win, statuses, l.batchSize)
	if err != nil {
		return LinkCounts{}, err
	}

	metrics.ObserveRows(l.statusTable, "deleted", deleted)
	metrics.ObserveRows(l.statusTable, "inserted", inserted)
	l.logger.Info("Link audit complete",
		zap.String("window", win.String()),
		zap.Int("probed", len(links)),
		zap.Int64("deleted", deleted),
		zap.Int64("inserted", inserted))
	return LinkCounts{Probed: len(links), Deleted: deleted, Inserted: inserted}, nil
}
