package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineMetricsCount(t *testing.T) {
	before := testutil.ToFloat64(pipelineRequestsTotal.WithLabelValues("completed"))
	ObserveRequest("completed")
	if got := testutil.ToFloat64(pipelineRequestsTotal.WithLabelValues("completed")); got != before+1 {
		t.Fatalf("requests_total{completed} = %f, want %f", got, before+1)
	}

	rejectedBefore := testutil.ToFloat64(rejectedQueriesTotal.WithLabelValues("strict"))
	IncrementRejectedQuery("strict")
	if got := testutil.ToFloat64(rejectedQueriesTotal.WithLabelValues("strict")); got != rejectedBefore+1 {
		t.Fatalf("rejected_queries_total{strict} = %f", got)
	}

	ObserveInference("vetted", 1500*time.Millisecond)
	ObserveExecution("completed", 20*time.Millisecond)
	if testutil.CollectAndCount(inferenceDurationSeconds) == 0 {
		t.Fatal("expected inference histogram series")
	}
	if testutil.CollectAndCount(executionDurationSeconds) == 0 {
		t.Fatal("expected execution histogram series")
	}
}

func TestMetricsMiddlewareLabelsByPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := MetricsMiddleware(mux)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "GET /v1/health", "200"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "GET /v1/health", "200"))
	if after != before+1 {
		t.Fatalf("http_requests_total = %f, want %f", after, before+1)
	}
}
