package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Corpus, retrieval and notification metrics.
var (
	CorpusRebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corpus_rebuilds_total",
			Help:      "Corpus rebuilds by corpus type and outcome",
		},
		[]string{"corpus_type", "outcome"}, // ok / noop / error
	)

	CorpusRebuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "corpus_rebuild_duration_seconds",
			Help:      "Corpus rebuild duration including embedding",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"corpus_type"},
	)

	CorpusChunks = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "corpus_chunks",
			Help:      "Chunks per rebuilt tenant corpus",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"corpus_type"},
	)

	ScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Similarity scan duration excluding embedding",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"}, // retrieve / match
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Match notifications by driver and outcome",
		},
		[]string{"driver", "outcome"},
	)
)

var registerCorpusOnce sync.Once

// RegisterCorpusMetrics registers corpus metrics. Safe to call more than once.
func RegisterCorpusMetrics() {
	registerCorpusOnce.Do(func() {
		prometheus.MustRegister(
			CorpusRebuildsTotal,
			CorpusRebuildDuration,
			CorpusChunks,
			ScanDuration,
			NotificationsTotal,
		)
	})
}
