// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelineRowsTotal     *prometheus.CounterVec
	pipelineBlogsTotal    *prometheus.CounterVec
	pipelineLinksTotal    *prometheus.CounterVec
	pipelineChunksTotal   prometheus.Counter
	pipelineStageDuration *prometheus.HistogramVec
	searchRequestsTotal   *prometheus.CounterVec
	searchDurationSeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pipelineRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_rows_total",
				Help: "Total rows written or removed, labeled by table and action (inserted, deleted, staged).",
			},
			[]string{"table", "action"},
		)

		pipelineBlogsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_blogs_total",
				Help: "Total blog posts handled per stage, labeled by stage and outcome (processed, failed, skipped).",
			},
			[]string{"stage", "outcome"},
		)

		pipelineLinksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_links_total",
				Help: "Total content links probed, labeled by resulting status.",
			},
			[]string{"status"},
		)

		pipelineChunksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_chunks_total",
				Help: "Total chunks embedded and written to the vector store.",
			},
		)

		pipelineStageDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Histogram of end-to-end stage run durations.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"stage"},
		)

		searchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_requests_total",
				Help: "Total search API requests, labeled by status code.",
			},
			[]string{"code"},
		)

		searchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_duration_seconds",
				Help:    "Histogram of search request latencies, embedding call included.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRows records rows touched on a table by an action.
func ObserveRows(table, action string, n int64) {
	if n > 0 {
		pipelineRowsTotal.WithLabelValues(table, action).Add(float64(n))
	}
}

// ObserveBlog increments the per-stage blog outcome counter.
func ObserveBlog(stage, outcome string) {
	pipelineBlogsTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveLink increments the probe counter for a link status.
func ObserveLink(status string) {
	pipelineLinksTotal.WithLabelValues(status).Inc()
}

// ObserveChunks records chunks written to the vector store.
func ObserveChunks(n int) {
	if n > 0 {
		pipelineChunksTotal.Add(float64(n))
	}
}

// ObserveStage records how long a stage run took.
func ObserveStage(stage string, duration time.Duration) {
	pipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveSearch records one search API request.
func ObserveSearch(code string, duration time.Duration) {
	searchRequestsTotal.WithLabelValues(code).Inc()
	searchDurationSeconds.Observe(duration.Seconds())
}
