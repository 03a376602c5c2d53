// Package metrics defines the Prometheus metric collectors used across the
// detection engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	DocsIngestedTotal  prometheus.Counter
	DocsRemovedTotal   prometheus.Counter
	IngestFailures     *prometheus.CounterVec
	ChecksTotal        *prometheus.CounterVec
	CheckLatency       prometheus.Histogram
	CheckSentences     prometheus.Histogram
	CandidatesPerQuery prometheus.Histogram
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
	IndexTokens        prometheus.Gauge
	IndexDocuments     prometheus.Gauge
	SnapshotsTotal     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		DocsIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_ingested_total",
				Help: "Total documents successfully indexed.",
			},
		),
		DocsRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_removed_total",
				Help: "Total documents removed from the index.",
			},
		),
		IngestFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_failures_total",
				Help: "Total ingestion failures by reason (validation, partial_ingestion, exists, ...).",
			},
			[]string{"reason"},
		),
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checks_total",
				Help: "Total plagiarism checks by outcome status (high, medium, low, partial).",
			},
			[]string{"status"},
		),
		CheckLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "check_latency_seconds",
				Help:    "Plagiarism check compute latency in seconds (cache hits are counted separately).",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		CheckSentences: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "check_input_sentences",
				Help:    "Eligible input sentences per check.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
			},
		),
		CandidatesPerQuery: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "check_candidates_per_sentence",
				Help:    "Candidate source sentences surviving the overlap cutoff, per query sentence.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of report cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of report cache misses.",
			},
		),
		IndexTokens: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_tokens",
				Help: "Distinct tokens currently held in the inverted index.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Documents currently registered in the corpus.",
			},
		),
		SnapshotsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshots_total",
				Help: "Total snapshot save operations by status.",
			},
			[]string{"status"},
		),
	}

	prometheus.MustRegister(
		m.DocsIngestedTotal,
		m.DocsRemovedTotal,
		m.IngestFailures,
		m.ChecksTotal,
		m.CheckLatency,
		m.CheckSentences,
		m.CandidatesPerQuery,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexTokens,
		m.IndexDocuments,
		m.SnapshotsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
