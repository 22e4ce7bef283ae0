// Package metrics registers the engine's Prometheus collectors with the
// default registry and exposes small helpers to record them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tenant connection outcomes.
const (
	ConnectionDefault  = "default"
	ConnectionBuilt    = "built"
	ConnectionFallback = "fallback"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatq_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatq_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	tenantConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatq_tenant_connections_total",
			Help: "Tenant connection resolutions by outcome (default, built, fallback).",
		},
		[]string{"outcome"},
	)

	queryTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatq_query_turns_total",
			Help: "Completed query turns by terminal state.",
		},
		[]string{"state"},
	)

	continuationRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatq_continuation_rejected_total",
			Help: "Continuation tokens that failed to decode and were treated as absent.",
		},
	)

	llmRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatq_llm_request_duration_seconds",
			Help:    "LLM gateway call latency by step and outcome.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"step", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		tenantConnectionsTotal,
		queryTurnsTotal,
		continuationRejectedTotal,
		llmRequestDurationSeconds,
	)
}

// ObserveTenantConnection records how a tenant connection was resolved.
func ObserveTenantConnection(outcome string) {
	tenantConnectionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveQueryTurn records a finished turn.
func ObserveQueryTurn(state string) {
	queryTurnsTotal.WithLabelValues(state).Inc()
}

func IncrementContinuationRejected() {
	continuationRejectedTotal.Inc()
}

// ObserveLLMCall records one gateway call. step is "table_selection",
// "query_synthesis" or "chat".
func ObserveLLMCall(step string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	llmRequestDurationSeconds.WithLabelValues(step, outcome).Observe(elapsed.Seconds())
}

// Middleware records request counts and latency per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		status := strconv.Itoa(recorder.status)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets streaming handlers behind the middleware flush.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
