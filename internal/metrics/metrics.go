// Package metrics exposes Prometheus counters and histograms for the
// Workflow Supervisor, Code Graph Indexer, and Retrieval Engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder instruments the Supervisor/Indexer/Retrieval subsystems. All
// methods are safe for concurrent use, matching the teacher's Prometheus
// client usage.
type Recorder struct {
	conversationsTotal  *prometheus.CounterVec
	conversationSeconds *prometheus.HistogramVec
	buildAttemptsTotal  *prometheus.CounterVec
	indexedFilesTotal   *prometheus.CounterVec
	indexDuration       prometheus.Histogram
	retrievalDuration   *prometheus.HistogramVec
	retrievalHitsTotal  *prometheus.CounterVec
}

// New registers the metric families with the default Prometheus registerer
// and returns a Recorder ready to use.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metric families with the given registerer.
// Tests use their own prometheus.NewRegistry() so repeated calls don't
// collide on the global default registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		conversationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragforge_conversations_total",
				Help: "Total number of conversations processed by the Workflow Supervisor, by terminal status",
			},
			[]string{"status"},
		),
		conversationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragforge_conversation_duration_seconds",
				Help:    "Wall-clock duration of a conversation from start to terminal status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		buildAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragforge_build_attempts_total",
				Help: "Total number of build/repair loop attempts, by outcome",
			},
			[]string{"outcome"},
		),
		indexedFilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragforge_indexed_files_total",
				Help: "Total number of source files processed by the Code Graph Indexer, by change kind",
			},
			[]string{"change_kind"},
		),
		indexDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ragforge_index_run_duration_seconds",
				Help:    "Duration of a full Code Graph Indexer run",
				Buckets: prometheus.DefBuckets,
			},
		),
		retrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragforge_retrieval_duration_seconds",
				Help:    "Duration of a Retrieval Engine query, by retrieval kind",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		retrievalHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragforge_retrieval_hits_total",
				Help: "Total number of code context snippets returned by the Retrieval Engine, by retrieval kind",
			},
			[]string{"kind"},
		),
	}
}

// ObserveConversation records a conversation's terminal status and total
// duration.
func (r *Recorder) ObserveConversation(status string, duration time.Duration) {
	r.conversationsTotal.WithLabelValues(status).Inc()
	r.conversationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveBuildAttempt records one build/repair loop attempt. outcome is
// typically "success", "retry", or "fail".
func (r *Recorder) ObserveBuildAttempt(outcome string) {
	r.buildAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveIndexRun records one Code Graph Indexer pass: how many files were
// added/modified/deleted and how long the pass took.
func (r *Recorder) ObserveIndexRun(added, modified, deleted int, duration time.Duration) {
	r.indexedFilesTotal.WithLabelValues("added").Add(float64(added))
	r.indexedFilesTotal.WithLabelValues("modified").Add(float64(modified))
	r.indexedFilesTotal.WithLabelValues("deleted").Add(float64(deleted))
	r.indexDuration.Observe(duration.Seconds())
}

// ObserveRetrieval records one Retrieval Engine query of the given kind
// (e.g. "symbol", "vector", "hybrid") and how many context snippets it
// returned.
func (r *Recorder) ObserveRetrieval(kind string, hits int, duration time.Duration) {
	r.retrievalDuration.WithLabelValues(kind).Observe(duration.Seconds())
	r.retrievalHitsTotal.WithLabelValues(kind).Add(float64(hits))
}
