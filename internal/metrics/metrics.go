// Package metrics collects Prometheus metrics about the client-side caches and
// the remote API calls behind them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the stores and the API client report to.
type Recorder interface {
	RecordCacheHit(store string)
	RecordCacheMiss(store string)
	RecordRollback(store, op string)
	RecordInvalidation(store string)
	RecordAPIRequest(op string, status int, duration time.Duration)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	rollbacks     *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	apiRequests   *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garderoba_cache_hits_total",
			Help: "Store loads served from a fresh local snapshot.",
		}, []string{"store"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garderoba_cache_misses_total",
			Help: "Store loads that had to fetch from the API.",
		}, []string{"store"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garderoba_optimistic_rollbacks_total",
			Help: "Optimistic updates reverted by a reconciling fetch.",
		}, []string{"store", "op"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garderoba_invalidations_total",
			Help: "Cross-store invalidations handled.",
		}, []string{"store"}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "garderoba_api_requests_total",
			Help: "API requests by operation and HTTP status (0 for transport errors).",
		}, []string{"op", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "garderoba_api_request_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.rollbacks,
		c.invalidations,
		c.apiRequests,
		c.apiLatency,
	)

	return c
}

func (c *Collector) RecordCacheHit(store string) {
	c.cacheHits.WithLabelValues(store).Inc()
}

func (c *Collector) RecordCacheMiss(store string) {
	c.cacheMisses.WithLabelValues(store).Inc()
}

func (c *Collector) RecordRollback(store, op string) {
	c.rollbacks.WithLabelValues(store, op).Inc()
}

func (c *Collector) RecordInvalidation(store string) {
	c.invalidations.WithLabelValues(store).Inc()
}

func (c *Collector) RecordAPIRequest(op string, status int, duration time.Duration) {
	c.apiRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	c.apiLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// Nop discards everything. It is the default when no collector is configured.
type Nop struct{}

func (Nop) RecordCacheHit(string)                       {}
func (Nop) RecordCacheMiss(string)                      {}
func (Nop) RecordRollback(string, string)               {}
func (Nop) RecordInvalidation(string)                   {}
func (Nop) RecordAPIRequest(string, int, time.Duration) {}

// Handler returns the HTTP handler serving metrics from gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
