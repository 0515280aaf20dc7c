package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/metrics"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// SitemapSource lists and parses sitemap documents.
type SitemapSource interface {
	ListPages(indexURL string) ([]string, error)
	ParseSitemap(sitemapURL string) ([]blog.URLRecord, error)
}

// URLStore is the warehouse surface the sitemap stage needs.
type URLStore interface {
	EnsureURLTable(ctx context.Context, table string) error
	UpsertURLs(ctx context.Context, table string, records []blog.URLRecord) error
	URLsForMonth(ctx context.Context, table string, year, month int) ([]string, error)
}

// RawWriter persists parsed articles to raw object storage.
type RawWriter interface {
	WritePartitioned(ctx context.Context, prefix string, articles []blog.Article) ([]string, error)
}

// SitemapIngestorConfig holds the stage's knobs.
type SitemapIngestorConfig struct {
	IndexURL string // sitemap index document
	Marker   string // substring selecting post sitemaps from the index
	URLTable string
	Prefix   string // raw storage prefix
	Parallel int    // concurrent render+parse workers
}

// SitemapIngestor runs the ingestion stage: refresh the sitemap URL table,
// then render, parse, and store the articles for a window. One article
// failing to render or parse is recorded and skipped; the run continues.
type SitemapIngestor struct {
	source   SitemapSource
	urls     URLStore
	renderer blog.Renderer
	raw      RawWriter
	cfg      SitemapIngestorConfig
	logger   *zap.Logger
}

// NewSitemapIngestor wires the stage.
func NewSitemapIngestor(source SitemapSource, urls URLStore, renderer blog.Renderer, raw RawWriter, cfg SitemapIngestorConfig, logger *zap.Logger) *SitemapIngestor {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 4
	}
	return &SitemapIngestor{
		source:   source,
		urls:     urls,
		renderer: renderer,
		raw:      raw,
		cfg:      cfg,
		logger:   logger,
	}
}

// RefreshURLs pulls the sitemap index, parses every post sitemap it
// references, and merges the filtered records into the URL table. Safe to
// re-run: unchanged records insert nothing.
func (s *SitemapIngestor) RefreshURLs(ctx context.Context) (int, error) {
	if err := s.urls.EnsureURLTable(ctx, s.cfg.URLTable); err != nil {
		return 0, err
	}

	pages, err := s.source.ListPages(s.cfg.IndexURL)
	if err != nil {
		return 0, err
	}

	var records []blog.URLRecord
	for _, page := range pages {
		if s.cfg.Marker != "" && !strings.Contains(page, s.cfg.Marker) {
			continue
		}
		recs, err := s.source.ParseSitemap(page)
		if err != nil {
			return 0, err
		}
		records = append(records, recs...)
	}
	records = blog.FilterArticleURLs(records)

	if err := s.urls.UpsertURLs(ctx, s.cfg.URLTable, records); err != nil {
		return 0, err
	}
	metrics.ObserveRows(s.cfg.URLTable, "staged", int64(len(records)))
	return len(records), nil
}

// Run executes the full stage for a window: refresh the URL table, then for
// every month in the window render each article URL, parse it, and write
// the month's articles to raw storage.
func (s *SitemapIngestor) Run(ctx context.Context, win warehouse.Window) (*Report, error) {
	started := time.Now()
	defer func() { metrics.ObserveStage("sitemap", time.Since(started)) }()

	if _, err := s.RefreshURLs(ctx); err != nil {
		return nil, err
	}

	report := &Report{}
	seen := 0
	for _, ym := range win.Months() {
		year, month := ym[0], ym[1]
		urls, err := s.urls.URLsForMonth(ctx, s.cfg.URLTable, year, month)
		if err != nil {
			return nil, err
		}
		if len(urls) == 0 {
			s.logger.Info("No articles for month",
				zap.Int("year", year), zap.Int("month", month))
			continue
		}
		seen += len(urls)

		articles := s.renderMonth(ctx, urls, report)
		if len(articles) == 0 {
			continue
		}
		if _, err := s.raw.WritePartitioned(ctx, s.cfg.Prefix, articles); err != nil {
			return nil, err
		}
	}

	report.LogSummary(s.logger, "sitemap", seen)
	return report, nil
}

func (s *SitemapIngestor) renderMonth(ctx context.Context, urls []string, report *Report) []blog.Article {
	results := make([]*blog.Article, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallel)

	for i, rawURL := range urls {
		g.Go(func() error {
			html, err := s.renderer.Render(gctx, rawURL)
			if err != nil {
				report.AddFailed(rawURL, err)
				metrics.ObserveBlog("sitemap", "failed")
				return nil
			}
			art, err := blog.ParseArticle(html)
			if err != nil {
				report.AddFailed(rawURL, err)
				metrics.ObserveBlog("sitemap", "failed")
				return nil
			}
			art.URL = rawURL
			results[i] = &art
			report.AddProcessed()
			metrics.ObserveBlog("sitemap", "processed")
			return nil
		})
	}
	_ = g.Wait()

	articles := make([]blog.Article, 0, len(results))
	for _, a := range results {
		if a != nil {
			articles = append(articles, *a)
		}
	}
	return articles
}
