// Package metrics provides Prometheus metrics for topicwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecomputesTotal counts full derivation passes, labelled by trigger.
	RecomputesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "topicwatch",
			Name:      "recomputes_total",
			Help:      "Total number of full aggregate recomputations",
		},
		[]string{"trigger"},
	)

	// RecomputeDuration measures one derivation pass.
	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "topicwatch",
			Name:      "recompute_duration_seconds",
			Help:      "Duration of a full aggregate recomputation in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	// LoadsTotal counts run loads by outcome.
	LoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "topicwatch",
			Name:      "loads_total",
			Help:      "Total number of run loads",
		},
		[]string{"status"},
	)

	// RunFilesSkipped counts individual run files that could not be read.
	RunFilesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "topicwatch",
			Name:      "run_files_skipped_total",
			Help:      "Run files skipped because they could not be fetched or decoded",
		},
		[]string{"provider"},
	)

	// RunsLoaded is the number of runs in the most recently committed store.
	RunsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "topicwatch",
			Name:      "runs_loaded",
			Help:      "Number of monitoring runs currently loaded",
		},
	)

	// ArticlesLoaded is the size of the canonical article sequence.
	ArticlesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "topicwatch",
			Name:      "articles_loaded",
			Help:      "Number of articles across all loaded runs",
		},
	)
)

// RecordRecompute records one derivation pass.
func RecordRecompute(trigger string, seconds float64) {
	RecomputesTotal.WithLabelValues(trigger).Inc()
	RecomputeDuration.Observe(seconds)
}

// RecordLoad records a load outcome ("ok", "error", "abandoned").
func RecordLoad(status string) {
	LoadsTotal.WithLabelValues(status).Inc()
}

// RecordSkippedFile records one unreadable run file.
func RecordSkippedFile(provider string) {
	RunFilesSkipped.WithLabelValues(provider).Inc()
}

// SetLoaded updates the loaded-size gauges.
func SetLoaded(runs, articles int) {
	RunsLoaded.Set(float64(runs))
	ArticlesLoaded.Set(float64(articles))
}
