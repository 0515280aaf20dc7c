package blog

import (
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// SitemapClient fetches and parses sitemap XML using a Colly collector.
type SitemapClient struct {
	userAgent string
	logger    *zap.Logger
}

// NewSitemapClient builds a sitemap client with the given user agent.
func NewSitemapClient(userAgent string, logger *zap.Logger) *SitemapClient {
	return &SitemapClient{userAgent: userAgent, logger: logger}
}

func (s *SitemapClient) newCollector() *colly.Collector {
	c := colly.NewCollector(colly.UserAgent(s.userAgent))
	c.AllowURLRevisit = true
	return c
}

// ListPages returns every <loc> entry found in the document at indexURL.
// For a sitemap index these are the per-section sitemaps; for a urlset they
// are the pages themselves.
func (s *SitemapClient) ListPages(indexURL string) ([]string, error) {
	c := s.newCollector()

	var pages []string
	var fetchErr error

	c.OnXML("//loc", func(e *colly.XMLElement) {
		loc := strings.TrimSpace(e.Text)
		if loc != "" {
			pages = append(pages, loc)
		}
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(indexURL); err != nil {
		return nil, fmt.Errorf("visit sitemap %s: %w", indexURL, err)
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", indexURL, fetchErr)
	}

	s.logger.Info("Listed sitemap pages",
		zap.String("sitemap", indexURL),
		zap.Int("count", len(pages)))
	return pages, nil
}

// ParseSitemap parses a urlset sitemap into URL records. Entries without a
// parseable <lastmod> are skipped with a log line; the rest of the document
// still parses.
func (s *SitemapClient) ParseSitemap(sitemapURL string) ([]URLRecord, error) {
	c := s.newCollector()

	var records []URLRecord
	var fetchErr error

	c.OnXML("//urlset/url", func(e *colly.XMLElement) {
		loc := strings.TrimSpace(e.ChildText("loc"))
		lastmod := strings.TrimSpace(e.ChildText("lastmod"))
		if loc == "" {
			return
		}
		ts, err := ParseSitemapTime(lastmod)
		if err != nil {
			s.logger.Warn("Skipping sitemap entry with bad lastmod",
				zap.String("url", loc),
				zap.String("lastmod", lastmod),
				zap.Error(err))
			return
		}
		records = append(records, URLRecord{URL: loc, LastModified: ts})
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(sitemapURL); err != nil {
		return nil, fmt.Errorf("visit sitemap %s: %w", sitemapURL, err)
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, fetchErr)
	}

	s.logger.Info("Parsed sitemap",
		zap.String("sitemap", sitemapURL),
		zap.Int("urls", len(records)))
	return records, nil
}

// ParseSitemapTime accepts the timestamp formats sitemaps use in the wild:
// RFC3339 with or without a time component.
func ParseSitemapTime(value string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized lastmod %q", value)
}

// FilterArticleURLs drops the bare article index page and media assets from
// a sitemap listing, mirroring what the parse stage can actually ingest.
func FilterArticleURLs(records []URLRecord) []URLRecord {
	out := make([]URLRecord, 0, len(records))
	for _, rec := range records {
		if rec.URL == BaseURL {
			continue
		}
		excluded := false
		for _, suffix := range Exclusions {
			if strings.HasSuffix(rec.URL, suffix) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, rec)
		}
	}
	return out
}
