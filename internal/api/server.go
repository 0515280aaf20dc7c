// Package api exposes the HTTP interface for search over ingested blogs.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pybitesdata/blogpipe/internal/blog"
	"github.com/pybitesdata/blogpipe/internal/metrics"
	"github.com/pybitesdata/blogpipe/internal/vectorstore"
)

// Searcher answers free-text queries against the vector store.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error)
}

// ArticleSource lists recent articles from the gold store.
type ArticleSource interface {
	Recent(ctx context.Context, author, tag string, limit int) ([]blog.SilverArticle, error)
}

// Server wires HTTP handlers to the search and gold stores.
type Server struct {
	router   chi.Router
	searcher Searcher
	articles ArticleSource
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(searcher Searcher, articles ArticleSource, logger *zap.Logger) *Server {
	s := &Server{
		searcher: searcher,
		articles: articles,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.search)
		r.Get("/articles", s.recentArticles)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	query := r.URL.Query().Get("q")
	if query == "" {
		metrics.ObserveSearch(strconv.Itoa(http.StatusBadRequest), time.Since(started))
		writeError(w, http.StatusBadRequest, "query parameter q is required", s.logger)
		return
	}
	k := intParam(r, "k", 5)
	if k <= 0 || k > 50 {
		metrics.ObserveSearch(strconv.Itoa(http.StatusBadRequest), time.Since(started))
		writeError(w, http.StatusBadRequest, "k must be in [1, 50]", s.logger)
		return
	}

	results, err := s.searcher.Search(r.Context(), query, k)
	if err != nil {
		s.logger.Error("Search failed", zap.String("query", query), zap.Error(err))
		metrics.ObserveSearch(strconv.Itoa(http.StatusInternalServerError), time.Since(started))
		writeError(w, http.StatusInternalServerError, "search failed", s.logger)
		return
	}
	metrics.ObserveSearch(strconv.Itoa(http.StatusOK), time.Since(started))
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	}, s.logger)
}

func (s *Server) recentArticles(w http.ResponseWriter, r *http.Request) {
	author := r.URL.Query().Get("author")
	tag := r.URL.Query().Get("tag")
	limit := intParam(r, "limit", 10)
	if limit <= 0 || limit > 100 {
		writeError(w, http.StatusBadRequest, "limit must be in [1, 100]", s.logger)
		return
	}

	articles, err := s.articles.Recent(r.Context(), author, tag, limit)
	if err != nil {
		s.logger.Error("Recent articles query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed", s.logger)
		return
	}

	type item struct {
		RowID         string    `json:"row_id"`
		URL           string    `json:"url"`
		Title         string    `json:"title"`
		Author        string    `json:"author"`
		DatePublished time.Time `json:"date_published"`
		DateModified  time.Time `json:"date_modified"`
		Tags          []string  `json:"tags"`
	}
	items := make([]item, len(articles))
	for i, a := range articles {
		items[i] = item{
			RowID:         a.RowID,
			URL:           a.URL,
			Title:         a.Title,
			Author:        a.Author,
			DatePublished: a.DatePublished,
			DateModified:  a.DateModified,
			Tags:          a.Tags,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": items}, s.logger)
}

func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("Request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error", logger)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
