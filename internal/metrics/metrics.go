package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// StoreQueries counts aggregation queries by operation and outcome
	StoreQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "store_aggregate_queries_total", Help: "Report store aggregation queries by operation and outcome."},
		[]string{"op", "outcome"},
	)
	// StoreLatency tracks aggregation query latency in seconds
	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "store_aggregate_query_seconds", Help: "Report store aggregation latency in seconds.", Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}},
		[]string{"op"},
	)

	// HeatmapCache counts cache lookups by tier and result (hit, miss, error)
	HeatmapCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "heatmap_cache_lookups_total", Help: "Heatmap cache lookups by backend and result."},
		[]string{"backend", "result"},
	)

	// ProviderAttempts counts directions provider attempts by strategy and outcome
	ProviderAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "directions_provider_attempts_total", Help: "Directions provider attempts by strategy and outcome."},
		[]string{"strategy", "outcome"},
	)
	// ProviderLatency tracks provider attempt latency in milliseconds
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "directions_provider_latency_ms", Help: "Directions provider attempt latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"strategy"},
	)
	// RouteSource counts scored route responses by the tier that produced the geometry
	RouteSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_results_total", Help: "Scored route results by geometry source."},
		[]string{"source"},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(StoreQueries)
		Registry.MustRegister(StoreLatency)
		Registry.MustRegister(HeatmapCache)
		Registry.MustRegister(ProviderAttempts)
		Registry.MustRegister(ProviderLatency)
		Registry.MustRegister(RouteSource)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
