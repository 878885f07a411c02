package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheHits counts cache lookups by outcome and tier.
var CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cachesto_cache_lookups_total",
	Help: "Cache lookups by tier and outcome (hit/miss).",
}, []string{"tier", "outcome"})

// CacheEvictions counts entries removed by size or TTL pressure.
var CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cachesto_cache_evictions_total",
	Help: "Cache entries evicted by tier.",
}, []string{"tier"})

// BreakerState reports the current circuit breaker state per bucket,
// as a gauge (0=closed, 1=half_open, 2=open) since Prometheus has no
// native enum type.
var BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "cachesto_breaker_state",
	Help: "Circuit breaker state per bucket: 0=closed, 1=half_open, 2=open.",
}, []string{"bucket"})

// CoalescedRequests counts origin fetches that were joined by more
// than one waiter versus run solo.
var CoalescedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cachesto_coalesced_requests_total",
	Help: "Origin fetches by whether they were shared with concurrent waiters.",
}, []string{"shared"})

// OriginRequestDuration tracks origin fetch latency.
var OriginRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "cachesto_origin_request_duration_seconds",
	Help:    "Origin fetch latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"bucket", "status"})

// HTTPRequests counts requests served by the proxy's own HTTP surface.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cachesto_http_requests_total",
	Help: "Requests handled by the proxy, by route and status.",
}, []string{"route", "method", "status"})

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
