package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestMetricsRegistered verifies every collector is in the default registry.
func TestMetricsRegistered(t *testing.T) {
	RequestsTotal.WithLabelValues("GET", "2xx", "seed").Inc()
	RequestDuration.WithLabelValues("GET", "seed").Observe(0.1)
	QueriesTotal.WithLabelValues(QueryStatusComplete).Inc()
	QueryFanout.Observe(2)
	ModelInvocationsTotal.WithLabelValues("openai", "seed", "success").Inc()
	ModelLatency.WithLabelValues("openai", "seed").Observe(0.2)
	PoolWait.Observe(0)
	TranscriptWritesTotal.WithLabelValues("saved").Inc()
	RateLimitRejectedTotal.WithLabelValues("free").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"chorus_requests_total":           false,
		"chorus_request_duration_seconds": false,
		"chorus_queries_total":            false,
		"chorus_query_fanout":             false,
		"chorus_model_invocations_total":  false,
		"chorus_model_latency_seconds":    false,
		"chorus_pool_in_flight":           false,
		"chorus_pool_wait_seconds":        false,
		"chorus_transcript_writes_total":  false,
		"chorus_ratelimit_rejected_total": false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

func TestMiddlewareUsesMatchedPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := MetricsMiddleware(mux)

	before := counterValue(t, RequestsTotal, "GET", "2xx", "GET /sessions/{id}")
	beforeDur := histogramCount(t, RequestDuration, "GET", "GET /sessions/{id}")

	for _, id := range []string{"sess_a", "sess_b"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/"+id, nil))
	}

	if delta := counterValue(t, RequestsTotal, "GET", "2xx", "GET /sessions/{id}") - before; delta != 2 {
		t.Errorf("expected 2 requests on the pattern label, got %f", delta)
	}
	if delta := histogramCount(t, RequestDuration, "GET", "GET /sessions/{id}") - beforeDur; delta != 2 {
		t.Errorf("expected 2 duration samples, got %d", delta)
	}
}

func TestMiddlewareCapturesStatusCode(t *testing.T) {
	before := counterValue(t, RequestsTotal, "POST", "4xx", "unmatched")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/query", nil))

	if delta := counterValue(t, RequestsTotal, "POST", "4xx", "unmatched") - before; delta != 1 {
		t.Errorf("expected 4xx count to increase by 1, got delta=%f", delta)
	}
}

func TestStatusWriterFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	sw.Flush()
	if !rec.Flushed {
		t.Error("expected underlying writer to be flushed")
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// histogramCount reads the observation count from a HistogramVec.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}
