// Package metrics exposes Prometheus instrumentation for searches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so several recorders can coexist in tests.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	pagerLookups    *prometheus.CounterVec
	sessions        prometheus.Gauge
}

// New registers the search metrics in a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nasab",
			Name:      "backend_requests_total",
			Help:      "Search requests sent to a backend, by backend and outcome.",
		}, []string{"backend", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nasab",
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of backend search requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		pagerLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nasab",
			Name:      "pager_lookups_total",
			Help:      "Page lookups served from cache (hit) or requiring a fetch (miss).",
		}, []string{"result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nasab",
			Name:      "sessions_active",
			Help:      "Open search sessions.",
		}),
	}
	r.registry.MustRegister(r.backendRequests, r.backendLatency, r.pagerLookups, r.sessions)
	return r
}

// ObserveBackend records one backend call.
func (r *Recorder) ObserveBackend(backend string, d time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.backendRequests.WithLabelValues(backend, outcome).Inc()
	r.backendLatency.WithLabelValues(backend).Observe(d.Seconds())
}

// PagerHit records a page served without a fetch.
func (r *Recorder) PagerHit() {
	if r == nil {
		return
	}
	r.pagerLookups.WithLabelValues("hit").Inc()
}

// PagerMiss records a page that needed a batch fetch.
func (r *Recorder) PagerMiss() {
	if r == nil {
		return
	}
	r.pagerLookups.WithLabelValues("miss").Inc()
}

// SessionOpened and SessionClosed track the active session gauge.
func (r *Recorder) SessionOpened() {
	if r == nil {
		return
	}
	r.sessions.Inc()
}

func (r *Recorder) SessionClosed() {
	if r == nil {
		return
	}
	r.sessions.Dec()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
