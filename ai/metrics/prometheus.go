// Package metrics provides Prometheus metrics export for the memory core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports memory metrics in Prometheus format.
// A nil exporter is valid and records nothing.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Collective memory metrics
	contributions *prometheus.CounterVec
	refutations   *prometheus.CounterVec

	// Golden answer metrics
	goldenLookups *prometheus.CounterVec

	// Semantic search metrics
	semanticFallbacks prometheus.Counter

	// Episodic memory metrics
	episodicEvents *prometheus.CounterVec

	// Orchestrator metrics
	conversationsProcessed *prometheus.CounterVec
	conversationLatency    prometheus.Histogram
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.contributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoria",
			Subsystem: "collective",
			Name:      "contributions_total",
			Help:      "Total fact contributions by outcome status",
		},
		[]string{"status"},
	)

	e.refutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoria",
			Subsystem: "collective",
			Name:      "refutations_total",
			Help:      "Total fact refutations by outcome status",
		},
		[]string{"status"},
	)

	e.goldenLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoria",
			Subsystem: "golden",
			Name:      "lookups_total",
			Help:      "Total golden answer lookups by result (exact, semantic, miss)",
		},
		[]string{"result"},
	)

	e.semanticFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "memoria",
			Subsystem: "collective",
			Name:      "semantic_fallbacks_total",
			Help:      "Semantic retrievals that fell back to deterministic ordering",
		},
	)

	e.episodicEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoria",
			Subsystem: "episodic",
			Name:      "events_total",
			Help:      "Episodic extraction outcomes (saved, skipped, error)",
		},
		[]string{"outcome"},
	)

	e.conversationsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memoria",
			Subsystem: "orchestrator",
			Name:      "conversations_total",
			Help:      "Total conversations processed by status",
		},
		[]string{"status"},
	)

	e.conversationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "memoria",
			Subsystem: "orchestrator",
			Name:      "conversation_latency_seconds",
			Help:      "Conversation processing latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	registry.MustRegister(
		e.contributions,
		e.refutations,
		e.goldenLookups,
		e.semanticFallbacks,
		e.episodicEvents,
		e.conversationsProcessed,
		e.conversationLatency,
	)

	return e
}

// RecordContribution records a contribution outcome status.
func (e *PrometheusExporter) RecordContribution(status string) {
	if e == nil {
		return
	}
	e.contributions.WithLabelValues(status).Inc()
}

// RecordRefutation records a refutation outcome status.
func (e *PrometheusExporter) RecordRefutation(status string) {
	if e == nil {
		return
	}
	e.refutations.WithLabelValues(status).Inc()
}

// RecordGoldenLookup records a golden answer lookup result.
func (e *PrometheusExporter) RecordGoldenLookup(result string) {
	if e == nil {
		return
	}
	e.goldenLookups.WithLabelValues(result).Inc()
}

// RecordSemanticFallback records a fallback to deterministic ordering.
func (e *PrometheusExporter) RecordSemanticFallback() {
	if e == nil {
		return
	}
	e.semanticFallbacks.Inc()
}

// RecordEpisodicEvent records an episodic extraction outcome.
func (e *PrometheusExporter) RecordEpisodicEvent(outcome string) {
	if e == nil {
		return
	}
	e.episodicEvents.WithLabelValues(outcome).Inc()
}

// RecordConversation records a processed conversation and its latency.
func (e *PrometheusExporter) RecordConversation(latency time.Duration, success bool) {
	if e == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	e.conversationsProcessed.WithLabelValues(status).Inc()
	e.conversationLatency.Observe(latency.Seconds())
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
