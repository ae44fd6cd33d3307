package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycraft_http_requests_total",
			Help: "Total number of HTTP requests by route and status.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querycraft_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	pipelineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycraft_requests_total",
			Help: "Total number of answered questions by terminal outcome.",
		},
		[]string{"outcome"},
	)
	inferenceDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querycraft_inference_duration_seconds",
			Help:    "Latency of SQL synthesis, including the engine call and the safety gate.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"outcome"},
	)
	executionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querycraft_execution_duration_seconds",
			Help:    "Latency of vetted query execution against the store.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	rejectedQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querycraft_rejected_queries_total",
			Help: "Total number of generated statements refused by the safety gate.",
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		pipelineRequestsTotal,
		inferenceDurationSeconds,
		executionDurationSeconds,
		rejectedQueriesTotal,
	)
}

// ObserveRequest counts one question by the state the pipeline finished in.
func ObserveRequest(outcome string) {
	pipelineRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveInference(outcome string, elapsed time.Duration) {
	inferenceDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func ObserveExecution(outcome string, elapsed time.Duration) {
	executionDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func IncrementRejectedQuery(mode string) {
	rejectedQueriesTotal.WithLabelValues(mode).Inc()
}
