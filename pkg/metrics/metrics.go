// Package metrics provides centralized Prometheus metrics registry for the
// resource cache. All metrics are defined in their respective packages
// (cache, fetch, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides the exposition handler and a reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the resource cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler exposing every registered metric.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Tier Metrics (pkg/cache):
//   - rescache_tier_hits_total{tier} (Counter): Lookups answered by memory, disk, redis or network
//   - rescache_tier_misses_total{tier} (Counter): Lookups a tier could not answer
//   - rescache_tier_errors_total{tier, operation} (Counter): Disk/Redis I/O errors (get, set, init)
//   - rescache_loads_total{result} (Counter): Completed loads by answering tier, miss or cancelled
//   - rescache_promoted_bytes_total{tier} (Counter): Bytes written into a tier by promotion or population
//
// Fetch Metrics (pkg/fetch):
//   - rescache_fetch_total{outcome} (Counter): Fetches by outcome (success, transport_error, http_error, empty_body)
//   - rescache_fetch_status_total{status} (Counter): Responses by HTTP status
//   - rescache_fetch_duration_seconds{outcome} (Histogram): Fetch duration including retries
//
// Retry Metrics (pkg/fetch):
//   - rescache_fetch_retries_total{error_class} (Counter): Retry attempts by error class
//   - rescache_fetch_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - rescache_fetch_retry_exhausted_total{error_class} (Counter): Fetches that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - rescache_fetch_inflight (Gauge): Fetches holding an in-flight slot
//   - rescache_fetch_throttled_total (Counter): Fetches delayed by pacing or the in-flight cap
//
// Example Prometheus Queries:
//
//   # Memory Hit Rate
//   sum(rate(rescache_tier_hits_total{tier="memory"}[5m])) /
//   sum(rate(rescache_loads_total[5m]))
//
//   # Network Miss Rate
//   rate(rescache_loads_total{result="miss"}[5m])
//
//   # Disk Degradation
//   rate(rescache_tier_errors_total{tier="disk"}[5m]) > 0
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(rescache_fetch_duration_seconds_bucket[5m]))
