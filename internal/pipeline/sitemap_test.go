package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

const renderedArticle = `<html><head>
<script type="application/ld+json" class="rank-math-schema">
{"@graph":[
 {"@type":"WebPage","url":"%s","name":"Rendered","datePublished":"2024-01-05T08:00:00+00:00","dateModified":"2024-01-10T08:00:00+00:00"},
 {"@type":"Person","name":"Bob"}
]}
</script></head><body>
<div class="entry-content"><p>Hello world.</p></div>
</body></html>`

type fakeSitemapSource struct {
	pages   []string
	records map[string][]blog.URLRecord
}

func (f *fakeSitemapSource) ListPages(string) ([]string, error) {
	return f.pages, nil
}

func (f *fakeSitemapSource) ParseSitemap(sitemapURL string) ([]blog.URLRecord, error) {
	return f.records[sitemapURL], nil
}

type fakeURLStore struct {
	upserted []blog.URLRecord
	byMonth  map[[2]int][]string
}

func (f *fakeURLStore) EnsureURLTable(context.Context, string) error { return nil }

func (f *fakeURLStore) UpsertURLs(_ context.Context, _ string, records []blog.URLRecord) error {
	f.upserted = records
	return nil
}

func (f *fakeURLStore) URLsForMonth(_ context.Context, _ string, year, month int) ([]string, error) {
	return f.byMonth[[2]int{year, month}], nil
}

type fakeRenderer struct {
	failURL string
}

func (f *fakeRenderer) Render(_ context.Context, rawURL string) (string, error) {
	if rawURL == f.failURL {
		return "", errors.New("navigation timeout")
	}
	return fmt.Sprintf(renderedArticle, rawURL), nil
}

func (f *fakeRenderer) Close(context.Context) error { return nil }

type fakeRawWriter struct {
	writes [][]blog.Article
}

func (f *fakeRawWriter) WritePartitioned(_ context.Context, _ string, articles []blog.Article) ([]string, error) {
	f.writes = append(f.writes, articles)
	return []string{"blogs/year=2024/month=1/blogs.ndjson"}, nil
}

func sitemapTestWindow(t *testing.T) warehouse.Window {
	t.Helper()
	now := time.Date(2026, time.August, 23, 0, 0, 0, 0, time.UTC)
	win, err := warehouse.NewWindow(2024, 1, 2024, 1, now)
	require.NoError(t, err)
	return win
}

func TestSitemapIngestorFiltersAndUpserts(t *testing.T) {
	t.Parallel()

	lastMod := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)
	source := &fakeSitemapSource{
		pages: []string{
			"https://pybit.es/post-sitemap.xml",
			"https://pybit.es/page-sitemap.xml", // no post marker, skipped
		},
		records: map[string][]blog.URLRecord{
			"https://pybit.es/post-sitemap.xml": {
				{URL: blog.BaseURL, LastModified: lastMod}, // index page, filtered
				{URL: "https://pybit.es/articles/a/", LastModified: lastMod},
				{URL: "https://pybit.es/wp-content/shot.png", LastModified: lastMod}, // asset, filtered
			},
		},
	}
	urls := &fakeURLStore{}
	ing := NewSitemapIngestor(source, urls, &fakeRenderer{}, &fakeRawWriter{},
		SitemapIngestorConfig{
			IndexURL: "https://pybit.es/sitemap_index.xml",
			Marker:   "post-sitemap",
			URLTable: "sitemap_urls",
			Prefix:   "blogs",
		}, zap.NewNop())

	count, err := ing.RefreshURLs(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Len(t, urls.upserted, 1)
	require.Equal(t, "https://pybit.es/articles/a/", urls.upserted[0].URL)
}

func TestSitemapIngestorIsolatesRenderFailures(t *testing.T) {
	t.Parallel()

	source := &fakeSitemapSource{pages: nil}
	urls := &fakeURLStore{
		byMonth: map[[2]int][]string{
			{2024, 1}: {
				"https://pybit.es/articles/a/",
				"https://pybit.es/articles/broken/",
				"https://pybit.es/articles/c/",
			},
		},
	}
	raw := &fakeRawWriter{}
	ing := NewSitemapIngestor(source, urls, &fakeRenderer{failURL: "https://pybit.es/articles/broken/"}, raw,
		SitemapIngestorConfig{
			IndexURL: "https://pybit.es/sitemap_index.xml",
			Marker:   "post-sitemap",
			URLTable: "sitemap_urls",
			Prefix:   "blogs",
			Parallel: 2,
		}, zap.NewNop())

	report, err := ing.Run(context.Background(), sitemapTestWindow(t))
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed())
	require.Equal(t, 1, report.Failed())
	require.Equal(t, 3, report.Total())

	require.Len(t, raw.writes, 1)
	require.Len(t, raw.writes[0], 2)
	for _, a := range raw.writes[0] {
		require.Equal(t, "Rendered", a.Title)
		require.Equal(t, "Bob", a.Author)
		require.Equal(t, 2024, a.Year)
		require.Equal(t, 1, a.Month)
	}

	failures := report.Failures()
	require.Len(t, failures, 1)
	require.Equal(t, "https://pybit.es/articles/broken/", failures[0].Item)
}
