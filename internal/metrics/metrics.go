// Package metrics exposes the search service's worker activity as
// Prometheus instruments.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "labsearch"

// Metrics groups the instruments. It implements search.Observer.
type Metrics struct {
	ItemsProcessed *prometheus.CounterVec
	ItemsFailed    *prometheus.CounterVec
	ItemsRejected  *prometheus.CounterVec
	ItemLatency    *prometheus.HistogramVec
	Commits        *prometheus.CounterVec
	CommitLatency  prometheus.Histogram
	QueueItems     *prometheus.GaugeVec
	Searches       prometheus.Counter
	SearchLatency  prometheus.Histogram
	SearchHits     prometheus.Histogram
}

// New registers all instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Work items taken off the queue and executed.",
		}, []string{"kind"}),

		ItemsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_failed_total",
			Help:      "Work items whose execution failed.",
		}, []string{"kind"}),

		ItemsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_rejected_total",
			Help:      "Work items refused at enqueue, usually because the queue was full.",
		}, []string{"kind"}),

		ItemLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent executing one work item.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Index commits by outcome.",
		}, []string{"result"}),

		CommitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Time spent in backend commits.",
			Buckets:   prometheus.DefBuckets,
		}),

		QueueItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Queued work items by kind.",
		}, []string{"kind"}),

		Searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Search requests served.",
		}),

		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency.",
			Buckets:   prometheus.DefBuckets,
		}),

		SearchHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_hits",
			Help:      "Hits returned per search page.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}),
	}

	reg.MustRegister(
		m.ItemsProcessed,
		m.ItemsFailed,
		m.ItemsRejected,
		m.ItemLatency,
		m.Commits,
		m.CommitLatency,
		m.QueueItems,
		m.Searches,
		m.SearchLatency,
		m.SearchHits,
	)
	return m
}

// ItemProcessed records one executed item.
func (m *Metrics) ItemProcessed(kind string, success bool, d time.Duration) {
	m.ItemsProcessed.WithLabelValues(kind).Inc()
	m.ItemLatency.WithLabelValues(kind).Observe(d.Seconds())
	if !success {
		m.ItemsFailed.WithLabelValues(kind).Inc()
	}
}

// Rejected records an item refused at enqueue.
func (m *Metrics) Rejected(kind string) {
	m.ItemsRejected.WithLabelValues(kind).Inc()
}

// Committed records a backend commit.
func (m *Metrics) Committed(success bool, d time.Duration) {
	result := "ok"
	if !success {
		result = "error"
	}
	m.Commits.WithLabelValues(result).Inc()
	m.CommitLatency.Observe(d.Seconds())
}

// QueueDepth sets the per-kind queue gauges.
func (m *Metrics) QueueDepth(counts map[string]int) {
	for kind, n := range counts {
		m.QueueItems.WithLabelValues(kind).Set(float64(n))
	}
}

// Searched records one search.
func (m *Metrics) Searched(hits int, d time.Duration) {
	m.Searches.Inc()
	m.SearchLatency.Observe(d.Seconds())
	m.SearchHits.Observe(float64(hits))
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
