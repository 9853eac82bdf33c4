package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the videoroom signaling service.
//
// Naming convention: namespace_subsystem_name
// - namespace: videoroom (application-level grouping)
// - subsystem: transport, registry, dispatcher, media_engine, circuit_breaker, rate_limit (feature-level grouping)
// - name: specific metric (connections_active, requests_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, sessions, rooms)
// - Counter: Cumulative events (requests processed, errors)
// - Histogram: Latency distributions (dispatch time, media-engine call time)

var (
	// ActiveWebSocketConnections tracks the current number of adopted WebSocket transports.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "videoroom",
		Subsystem: "transport",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveSessions tracks the current number of registered sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "videoroom",
		Subsystem: "registry",
		Name:      "sessions_active",
		Help:      "Current number of registered sessions",
	})

	// ActiveRooms tracks the current number of registered rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "videoroom",
		Subsystem: "registry",
		Name:      "rooms_active",
		Help:      "Current number of registered rooms",
	})

	// ActiveFeeds tracks the current number of published feeds.
	ActiveFeeds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "videoroom",
		Subsystem: "registry",
		Name:      "feeds_active",
		Help:      "Current number of published feeds",
	})

	// DispatchRequests tracks the total number of dispatched requests by command and outcome.
	DispatchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videoroom",
		Subsystem: "dispatcher",
		Name:      "requests_total",
		Help:      "Total dispatcher requests processed",
	}, []string{"command", "status"})

	// DispatchErrors tracks error replies by numeric protocol error code.
	DispatchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videoroom",
		Subsystem: "dispatcher",
		Name:      "errors_total",
		Help:      "Total error replies by protocol error code",
	}, []string{"code"})

	// DispatchDuration tracks the time spent processing a dispatched request.
	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "videoroom",
		Subsystem: "dispatcher",
		Name:      "request_duration_seconds",
		Help:      "Time spent processing a dispatched request",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"command"})

	// MediaEngineCallDuration tracks the latency of calls to the media engine.
	MediaEngineCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "videoroom",
		Subsystem: "media_engine",
		Name:      "call_duration_seconds",
		Help:      "Latency of calls to the media engine",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// ReaperEvictions tracks the total number of sessions evicted by the idle-session reaper.
	ReaperEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "videoroom",
		Subsystem: "registry",
		Name:      "reaper_evictions_total",
		Help:      "Total number of sessions evicted by the idle-session reaper",
	})

	// CircuitBreakerState tracks the current state of a named circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "videoroom",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by a circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videoroom",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of requests that exceeded the rate limit.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videoroom",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videoroom",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// TokenStoreOperations tracks the total number of token-store operations.
	TokenStoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videoroom",
		Subsystem: "tokenstore",
		Name:      "operations_total",
		Help:      "Total number of token-store operations",
	}, []string{"operation", "status"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
