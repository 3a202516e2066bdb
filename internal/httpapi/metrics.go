package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the HTTP surface. The
// underlying registry is shared with the ingest collectors so one
// /metrics endpoint serves both.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	wsClients       prometheus.Gauge
	broadcastDrops  prometheus.Counter
	rateLimited     prometheus.Counter
	eventsSent      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytev",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests received",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ytev",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ytev",
			Name:      "ws_clients",
			Help:      "Current connected WebSocket clients",
		}),
		broadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ytev",
			Name:      "broadcast_drops_total",
			Help:      "Events dropped because a stream client was slow",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ytev",
			Name:      "http_rate_limited_total",
			Help:      "HTTP requests rejected due to rate limiting",
		}),
		eventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytev",
			Name:      "events_sent_total",
			Help:      "Events delivered to stream clients",
		}, []string{"kind"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.wsClients,
		m.broadcastDrops,
		m.rateLimited,
		m.eventsSent,
	)
	return m
}

// Registry exposes the registry so ingest collectors can join it.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler exposing the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records timing and status information.
func (m *Metrics) ObserveRequest(route, method string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(dur.Seconds())
}

// IncWSClients adjusts the WebSocket client gauge by delta.
func (m *Metrics) IncWSClients(delta float64) {
	if m == nil {
		return
	}
	m.wsClients.Add(delta)
}

// IncBroadcastDrops increments the drop counter.
func (m *Metrics) IncBroadcastDrops() {
	if m == nil {
		return
	}
	m.broadcastDrops.Inc()
}

// IncRateLimited increments the rate limit counter.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// IncEventsSent increments the sent counter for an event kind.
func (m *Metrics) IncEventsSent(kind string) {
	if m == nil {
		return
	}
	m.eventsSent.WithLabelValues(kind).Inc()
}
