// Package observability exposes Prometheus metrics for the canvas, the
// action interpreter and the AI orchestrator.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the process. Each collector
// owns a private registry, so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Canvas metrics
	ActionsApplied  *prometheus.CounterVec
	ActionsDropped  *prometheus.CounterVec
	ElementsCreated *prometheus.CounterVec
	Events          *prometheus.CounterVec

	// AI metrics
	AIRequests *prometheus.CounterVec
	LLMLatency *prometheus.HistogramVec
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ActionsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_applied_total",
				Help:      "Canvas actions applied, by action type",
			},
			[]string{"type"},
		),
		ActionsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_dropped_total",
				Help:      "Canvas actions or items dropped while decoding, by reason",
			},
			[]string{"reason"},
		),
		ElementsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "elements_created_total",
				Help:      "Elements created by the action interpreter, by kind",
			},
			[]string{"kind"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Events emitted by services, by name",
			},
			[]string{"event"},
		),
		AIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_requests_total",
				Help:      "Assistant requests, by feature and outcome",
			},
			[]string{"feature", "outcome"},
		),
		LLMLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Language model call duration in seconds",
				Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"feature"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.ActionsApplied,
		c.ActionsDropped,
		c.ElementsCreated,
		c.Events,
		c.AIRequests,
		c.LLMLatency,
	)
	return c
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ── action.Metrics ─────────────────────────────────────────

func (c *Collector) ActionApplied(actionType string) {
	c.ActionsApplied.WithLabelValues(actionType).Inc()
}

func (c *Collector) ElementCreated(kind string) {
	c.ElementsCreated.WithLabelValues(kind).Inc()
}

// ── ai.Metrics ─────────────────────────────────────────────

func (c *Collector) AIRequest(feature, outcome string) {
	c.AIRequests.WithLabelValues(feature, outcome).Inc()
}

func (c *Collector) ObserveLLMLatency(feature string, d time.Duration) {
	c.LLMLatency.WithLabelValues(feature).Observe(d.Seconds())
}

func (c *Collector) ActionDropped(reason string) {
	c.ActionsDropped.WithLabelValues(reason).Inc()
}

// ── service.EventEmitter ───────────────────────────────────

// Emit counts the event. It lets the collector sit in an emitter fan-out.
func (c *Collector) Emit(_ context.Context, event string, _ any) {
	c.Events.WithLabelValues(event).Inc()
}

// ── HTTP ───────────────────────────────────────────────────

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
