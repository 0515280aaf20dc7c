package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/metrics"
	"github.com/pybitesdata/blogpipe/internal/vectorstore"
)

func init() {
	metrics.Init()
}

type fakeSearcher struct {
	results []vectorstore.SearchResult
	err     error

	gotQuery string
	gotK     int
}

func (f *fakeSearcher) Search(_ context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	f.gotQuery = query
	f.gotK = k
	return f.results, f.err
}

type fakeArticleSource struct {
	articles []blog.SilverArticle
	err      error

	gotAuthor string
	gotTag    string
	gotLimit  int
}

func (f *fakeArticleSource) Recent(_ context.Context, author, tag string, limit int) ([]blog.SilverArticle, error) {
	f.gotAuthor = author
	f.gotTag = tag
	f.gotLimit = limit
	return f.articles, f.err
}

func newTestServer(t *testing.T, searcher Searcher, articles ArticleSource) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(searcher, articles, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeSearcher{}, &fakeArticleSource{})
	var body map[string]string
	code := getJSON(t, srv.URL+"/healthz", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])
}

func TestSearchHappyPath(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: []vectorstore.SearchResult{
		{ID: "row-1_0", Content: "pytest fixtures", Score: 0.02},
	}}
	srv := newTestServer(t, searcher, &fakeArticleSource{})

	var body struct {
		Query   string                     `json:"query"`
		Results []vectorstore.SearchResult `json:"results"`
	}
	code := getJSON(t, srv.URL+"/v1/search?q=pytest&k=3", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "pytest", body.Query)
	require.Len(t, body.Results, 1)
	require.Equal(t, "row-1_0", body.Results[0].ID)
	require.Equal(t, "pytest", searcher.gotQuery)
	require.Equal(t, 3, searcher.gotK)
}

func TestSearchDefaultsK(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{}
	srv := newTestServer(t, searcher, &fakeArticleSource{})

	var body map[string]any
	code := getJSON(t, srv.URL+"/v1/search?q=pytest", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 5, searcher.gotK)
}

func TestSearchValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeSearcher{}, &fakeArticleSource{})

	// Missing q, k out of range on both sides, k not a number.
	for _, path := range []string{
		"/v1/search",
		"/v1/search?q=x&k=0",
		"/v1/search?q=x&k=51",
		"/v1/search?q=x&k=banana",
	} {
		var body map[string]string
		code := getJSON(t, srv.URL+path, &body)
		require.Equal(t, http.StatusBadRequest, code, path)
		require.NotEmpty(t, body["error"], path)
	}
}

func TestSearchBackendErrorIs500(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeSearcher{err: errors.New("store offline")}, &fakeArticleSource{})

	var body map[string]string
	code := getJSON(t, srv.URL+"/v1/search?q=x", &body)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Equal(t, "search failed", body["error"])
}

func TestRecentArticlesFiltersAndProjects(t *testing.T) {
	t.Parallel()

	published := time.Date(2024, time.January, 5, 8, 0, 0, 0, time.UTC)
	source := &fakeArticleSource{articles: []blog.SilverArticle{
		{
			RowID:         "row-1",
			URL:           "https://pybit.es/articles/a/",
			Title:         "A",
			Author:        "Bob",
			DatePublished: published,
			DateModified:  published,
			Tags:          []string{"python"},
			Content:       []string{"should not leak into the response"},
		},
	}}
	srv := newTestServer(t, &fakeSearcher{}, source)

	var body struct {
		Articles []map[string]any `json:"articles"`
	}
	code := getJSON(t, srv.URL+"/v1/articles?author=Bob&tag=python&limit=7", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Bob", source.gotAuthor)
	require.Equal(t, "python", source.gotTag)
	require.Equal(t, 7, source.gotLimit)

	require.Len(t, body.Articles, 1)
	require.Equal(t, "row-1", body.Articles[0]["row_id"])
	require.NotContains(t, body.Articles[0], "content")
}

func TestRecentArticlesLimitValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeSearcher{}, &fakeArticleSource{})

	for _, path := range []string{"/v1/articles?limit=0", "/v1/articles?limit=101"} {
		var body map[string]string
		code := getJSON(t, srv.URL+path, &body)
		require.Equal(t, http.StatusBadRequest, code, path)
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeSearcher{}, &fakeArticleSource{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
