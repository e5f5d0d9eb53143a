// Package metrics holds the Prometheus collectors for the proxies, the offline cache, and the API.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "manhwatrack"

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	Registry       *prometheus.Registry
	CacheEvents    *prometheus.CounterVec
	ProxyRequests  *prometheus.CounterVec
	ProxyDuration  *prometheus.HistogramVec
	HTTPRequests   *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
}

// New creates a registry with process and Go runtime collectors plus the application collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		CacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "cache_events_total",
			Help:      "Offline cache lookups by strategy and outcome (hit, miss, fallback, revalidated, stored).",
		}, []string{"strategy", "outcome"}),
		ProxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Proxied requests by proxy and response status.",
		}, []string{"proxy", "status"}),
		ProxyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "upstream_duration_seconds",
			Help:      "Upstream fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"proxy"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by method and status.",
		}, []string{"method", "status"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "active_sessions",
			Help:      "Signed-in sessions with a running idle monitor.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CacheEvents,
		m.ProxyRequests,
		m.ProxyDuration,
		m.HTTPRequests,
		m.ActiveSessions,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// CacheEvent counts one offline cache outcome.
func (m *Metrics) CacheEvent(strategy, outcome string) {
	if m == nil {
		return
	}
	m.CacheEvents.WithLabelValues(strategy, outcome).Inc()
}

// ProxyRequest records a proxied request's status and upstream latency.
func (m *Metrics) ProxyRequest(proxy string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.ProxyRequests.WithLabelValues(proxy, strconv.Itoa(status)).Inc()
	m.ProxyDuration.WithLabelValues(proxy).Observe(d.Seconds())
}

// HTTPRequest counts one API request.
func (m *Metrics) HTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// SetActiveSessions reports the number of live sessions.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
