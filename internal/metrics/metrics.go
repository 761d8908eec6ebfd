// Package metrics exposes the gateway's Prometheus metrics, grounded on the
// pack's telemetry collector (mercator-hq-jupiter/pkg/telemetry/metrics):
// a small set of vectors registered against one registry at construction
// time, with a promhttp handler for the management server to mount. Where
// the teacher proxy used atomic-counter snapshots polled over a bespoke
// JSON endpoint, this gateway exposes the standard Prometheus exposition
// format instead, since the pack's LLM-gateway-shaped repo does the same.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laplaque/llmguard/internal/types"
)

// Collector holds every metric the gateway records, registered against its
// own private registry so tests can construct multiple independent
// Collectors without a global-registry collision.
type Collector struct {
	registry *prometheus.Registry

	pipelineOutcomes  *prometheus.CounterVec
	interceptorBlocks *prometheus.CounterVec
	adapterLatency    *prometheus.HistogramVec
	adapterErrors     *prometheus.CounterVec
	requestCost       *prometheus.HistogramVec
}

// New constructs a Collector and registers its metrics.
func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		pipelineOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmguard",
			Name:      "pipeline_outcomes_total",
			Help:      "Total pipeline calls by provider and outcome (pass, blocked).",
		}, []string{"provider", "outcome"}),
		interceptorBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmguard",
			Name:      "interceptor_blocks_total",
			Help:      "Total blocking violations emitted, by interceptor and code.",
		}, []string{"interceptor", "code"}),
		adapterLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmguard",
			Name:      "adapter_execute_seconds",
			Help:      "Latency of adapter.Execute calls, by provider.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		adapterErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmguard",
			Name:      "adapter_errors_total",
			Help:      "Total ADAPTER_ERROR violations, by provider.",
		}, []string{"provider"}),
		requestCost: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmguard",
			Name:      "request_cost_usd",
			Help:      "Computed per-call cost in USD, by provider.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 5},
		}, []string{"provider"}),
	}

	registry.MustRegister(c.pipelineOutcomes, c.interceptorBlocks, c.adapterLatency, c.adapterErrors, c.requestCost)
	return c
}

// RecordOutcome records one completed pipeline call.
func (c *Collector) RecordOutcome(provider types.Provider, passed bool) {
	outcome := "pass"
	if !passed {
		outcome = "blocked"
	}
	c.pipelineOutcomes.WithLabelValues(string(provider), outcome).Inc()
}

// RecordViolation records one blocking violation.
func (c *Collector) RecordViolation(v types.Violation) {
	c.interceptorBlocks.WithLabelValues(string(v.Interceptor), string(v.Code)).Inc()
	if v.Code == types.CodeAdapterError {
		provider, _ := v.Payload["provider"].(string)
		c.adapterErrors.WithLabelValues(provider).Inc()
	}
}

// RecordAdapterLatency records how long one adapter.Execute call took.
func (c *Collector) RecordAdapterLatency(provider types.Provider, d time.Duration) {
	c.adapterLatency.WithLabelValues(string(provider)).Observe(d.Seconds())
}

// RecordCost records the computed cost of one completed call.
func (c *Collector) RecordCost(provider types.Provider, usd float64) {
	c.requestCost.WithLabelValues(string(provider)).Observe(usd)
}

// Handler returns the promhttp handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
