package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the retrieval core. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	RebuildDuration   prometheus.Histogram
	DocumentsIndexed  prometheus.Gauge
	SourcesSkipped    prometheus.Counter
	RebuildTotal      *prometheus.CounterVec
	QueryResultsCount prometheus.Histogram
	MatchDuration     *prometheus.HistogramVec
	ProviderFailures  *prometheus.CounterVec
	CacheRequests     *prometheus.CounterVec
	OrderStatusTotal  *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		RebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shoprag_rebuild_duration_seconds",
				Help:    "Knowledge index rebuild duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		DocumentsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "shoprag_documents_indexed",
				Help: "Number of documents in the live knowledge collection",
			},
		),
		SourcesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shoprag_sources_skipped_total",
				Help: "Malformed source records skipped during rebuilds",
			},
		),
		RebuildTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shoprag_rebuild_total",
				Help: "Total number of rebuild attempts",
			},
			[]string{"status"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shoprag_query_results_count",
				Help:    "Number of knowledge results per query",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
			},
		),
		MatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shoprag_match_duration_seconds",
				Help:    "Product matching duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"path"},
		),
		ProviderFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shoprag_provider_failures_total",
				Help: "Embedding and captioning provider failures",
			},
			[]string{"component"},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shoprag_cache_requests_total",
				Help: "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		OrderStatusTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shoprag_order_status_total",
				Help: "Derived order statuses",
			},
			[]string{"status"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.RebuildDuration,
		m.DocumentsIndexed,
		m.SourcesSkipped,
		m.RebuildTotal,
		m.QueryResultsCount,
		m.MatchDuration,
		m.ProviderFailures,
		m.CacheRequests,
		m.OrderStatusTotal,
	)

	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRebuild(seconds float64, docs int, status string) {
	if m == nil {
		return
	}
	m.RebuildDuration.Observe(seconds)
	m.RebuildTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.DocumentsIndexed.Set(float64(docs))
	}
}

func (m *Metrics) SetDocuments(docs int) {
	if m == nil {
		return
	}
	m.DocumentsIndexed.Set(float64(docs))
}

func (m *Metrics) SkipSource() {
	if m == nil {
		return
	}
	m.SourcesSkipped.Inc()
}

func (m *Metrics) ObserveQuery(results int) {
	if m == nil {
		return
	}
	m.QueryResultsCount.Observe(float64(results))
}

func (m *Metrics) ObserveMatch(path string, seconds float64) {
	if m == nil {
		return
	}
	m.MatchDuration.WithLabelValues(path).Observe(seconds)
}

func (m *Metrics) ProviderFailure(component string) {
	if m == nil {
		return
	}
	m.ProviderFailures.WithLabelValues(component).Inc()
}

func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(cache, "hit").Inc()
}

func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(cache, "miss").Inc()
}

func (m *Metrics) OrderStatus(status string) {
	if m == nil {
		return
	}
	m.OrderStatusTotal.WithLabelValues(status).Inc()
}
