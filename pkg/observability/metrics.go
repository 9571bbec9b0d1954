// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the chorus gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets covers model latencies from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// FanoutBuckets covers the number of models per query.
var FanoutBuckets = []float64{1, 2, 3, 4, 6, 8, 12, 16}

// Query status label values.
const (
	QueryStatusComplete = "complete" // every model succeeded
	QueryStatusPartial  = "partial"  // at least one success and one failure
	QueryStatusFailed   = "failed"   // every model failed
	QueryStatusRejected = "rejected" // request-level validation failure
	QueryStatusError    = "error"    // internal error
)

var (
	// RequestsTotal counts HTTP requests by method, status class and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// QueriesTotal counts fan-out queries by aggregate status.
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_queries_total",
			Help: "Fan-out queries",
		},
		[]string{"status"},
	)

	// QueryFanout records how many models each query addressed.
	QueryFanout = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chorus_query_fanout",
			Help:    "Models per query",
			Buckets: FanoutBuckets,
		},
	)

	// ModelInvocationsTotal counts adapter calls by outcome (success or an
	// error kind).
	ModelInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_model_invocations_total",
			Help: "Model invocations",
		},
		[]string{"provider", "model", "outcome"},
	)

	// ModelLatency records per-model latency in seconds.
	ModelLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_model_latency_seconds",
			Help:    "Model latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// PoolInFlight tracks invocations currently holding a pool slot.
	PoolInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chorus_pool_in_flight",
			Help: "Invocations holding a pool slot",
		},
	)

	// PoolWait records how long invocations queued for a pool slot.
	PoolWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chorus_pool_wait_seconds",
			Help:    "Time spent waiting for a pool slot",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	// TranscriptWritesTotal counts transcript persistence attempts.
	TranscriptWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_transcript_writes_total",
			Help: "Transcript writes",
		},
		[]string{"status"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		QueriesTotal,
		QueryFanout,
		ModelInvocationsTotal,
		ModelLatency,
		PoolInFlight,
		PoolWait,
		TranscriptWritesTotal,
		RateLimitRejectedTotal,
	)
}
