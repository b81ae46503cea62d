// Package metrics exposes Prometheus instrumentation for the research
// engine. Import for side effects; collectors self-register via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_runs_started_total",
			Help: "Total research runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_runs_completed_total",
			Help: "Total research runs finished, by terminal status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepresearch_run_duration_seconds",
			Help:    "Research run duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)

	RoundsPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepresearch_rounds_per_run",
			Help:    "Rounds executed per research run",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)

	SearchQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_search_queries_total",
			Help: "Search queries dispatched, by outcome",
		},
		[]string{"outcome"},
	)

	SearchResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_search_results_total",
			Help: "Raw search results returned by the provider",
		},
	)

	LLMFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_llm_fallbacks_total",
			Help: "Degradations from the LLM path to a deterministic fallback, by stage",
		},
		[]string{"stage"},
	)

	ReportsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_reports_persisted_total",
			Help: "Terminal reports written to the store, by outcome",
		},
		[]string{"outcome"},
	)
)
