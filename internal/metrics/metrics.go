// Package metrics exposes Prometheus counters for routed requests, fed
// from observability events.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptroute/promptroute/types"
)

type Registry struct {
	reg *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestLatency   *prometheus.HistogramVec
	FallbacksTotal   *prometheus.CounterVec
	TokensTotal      *prometheus.CounterVec
	RoutingDecisions *prometheus.CounterVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptroute_requests_total",
			Help: "Total chat completions by outcome",
		}, []string{"prompt", "variant", "provider", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promptroute_request_latency_ms",
			Help:    "End-to-end request latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"prompt", "provider"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptroute_fallback_attempts_total",
			Help: "Non-terminal provider failures by reason",
		}, []string{"provider", "reason"}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptroute_tokens_total",
			Help: "Token usage by direction",
		}, []string{"prompt", "provider", "direction"}),
		RoutingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptroute_routing_decisions_total",
			Help: "Variant selections by routing reason",
		}, []string{"prompt", "variant", "reason"}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestLatency, m.FallbacksTotal, m.TokensTotal, m.RoutingDecisions)
	return m
}

// Observe folds one completed request event into the registry.
func (m *Registry) Observe(ev types.ObservabilityEvent) {
	status := "success"
	if !ev.Success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(ev.PromptID, ev.VariantID, ev.Provider, status).Inc()
	m.RequestLatency.WithLabelValues(ev.PromptID, ev.Provider).Observe(float64(ev.Timings.Total))
	m.RoutingDecisions.WithLabelValues(ev.PromptID, ev.VariantID, ev.RoutingReason).Inc()
	for _, fb := range ev.Fallbacks {
		m.FallbacksTotal.WithLabelValues(fb.Provider, string(fb.Reason)).Inc()
	}
	if u := ev.TokenUsage; u != nil {
		m.TokensTotal.WithLabelValues(ev.PromptID, ev.Provider, "prompt").Add(float64(u.PromptTokens))
		m.TokensTotal.WithLabelValues(ev.PromptID, ev.Provider, "completion").Add(float64(u.CompletionTokens))
	}
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
