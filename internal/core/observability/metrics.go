// Package observability holds the Prometheus collectors shared by the catalog components.
package observability

import (
	"errors"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream catalog calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"endpoint"},
	)

	upstreamRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_retries_total",
			Help: "Retries issued against the upstream catalog.",
		},
		[]string{"endpoint"},
	)

	upstreamFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_failures_total",
			Help: "Upstream calls that failed after exhausting retries.",
		},
		[]string{"endpoint"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	cacheTierErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_tier_errors_total",
			Help: "Persistent cache tier failures by operation.",
		},
		[]string{"op"},
	)

	dedupSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_suppressed_total",
			Help: "Duplicate requests answered with a dedup marker.",
		},
		[]string{"marker"},
	)

	routeDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_decisions_total",
			Help: "Upstream endpoint chosen by the filter router.",
		},
		[]string{"endpoint", "reason"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	initMu sync.Mutex
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		upstreamLatencySeconds, upstreamRetries, upstreamFailures,
		cacheResults, cacheTierErrors, dedupSuppressed, routeDecisions, buildInfo,
	}
}

// Init registers the collectors with reg. Collectors are always updated; Init only decides
// whether they are exported. Registering twice on the same registry is a no-op.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	initMu.Lock()
	defer initMu.Unlock()
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(endpoint string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(endpoint).Observe(durationSeconds)
}

func IncUpstreamRetry(endpoint string) {
	upstreamRetries.WithLabelValues(endpoint).Inc()
}

func IncUpstreamFailure(endpoint string) {
	upstreamFailures.WithLabelValues(endpoint).Inc()
}

// ObserveCache records one lookup; outcome is "hit", "miss" or "expired".
func ObserveCache(tier, outcome string) {
	cacheResults.WithLabelValues(tier, outcome).Inc()
}

func IncCacheTierError(op string) {
	cacheTierErrors.WithLabelValues(op).Inc()
}

func IncDedupSuppressed(marker string) {
	dedupSuppressed.WithLabelValues(marker).Inc()
}

func ObserveRouteDecision(endpoint, reason string) {
	routeDecisions.WithLabelValues(endpoint, reason).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
