// Package metrics exposes Prometheus collectors for backend calls, list refreshes and sign-ins.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh outcomes.
const (
	RefreshOK         = "ok"
	RefreshFailed     = "failed"
	RefreshSuperseded = "superseded"
	RefreshSuppressed = "suppressed"
)

// Recorder is what repositories and services report to.
type Recorder interface {
	RecordBackendRequest(op string, status int, dur time.Duration)
	RecordRefresh(outcome string)
	RecordSignIn(ok bool)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordBackendRequest(string, int, time.Duration) {}
func (Nop) RecordRefresh(string)                            {}
func (Nop) RecordSignIn(bool)                               {}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	refreshes *prometheus.CounterVec
	signIns   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_backend_requests_total",
			Help: "Backend product API requests by operation and HTTP status (0 = transport error).",
		}, []string{"op", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_backend_request_duration_seconds",
			Help:    "Backend product API latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_refresh_total",
			Help: "Product list refreshes by outcome.",
		}, []string{"outcome"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_signin_total",
			Help: "Sign-in attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(c.requests, c.latency, c.refreshes, c.signIns)
	return c
}

// RecordBackendRequest counts one backend call and observes its latency.
func (c *Collector) RecordBackendRequest(op string, status int, dur time.Duration) {
	c.requests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(op).Observe(dur.Seconds())
}

// RecordRefresh counts one list refresh by outcome.
func (c *Collector) RecordRefresh(outcome string) {
	c.refreshes.WithLabelValues(outcome).Inc()
}

// RecordSignIn counts one sign-in attempt.
func (c *Collector) RecordSignIn(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	c.signIns.WithLabelValues(result).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
