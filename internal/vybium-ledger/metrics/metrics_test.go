package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestObserveProof(t *testing.T) {
	m := New()
	m.ObserveProof("ok", 20*time.Millisecond)
	m.ObserveProof("ok", 30*time.Millisecond)
	m.ObserveProof("proof_failure", time.Millisecond)

	out := scrape(t, m)
	for _, want := range []string{
		`vybium_ledger_proofs_total{outcome="ok"} 2`,
		`vybium_ledger_proofs_total{outcome="proof_failure"} 1`,
		"vybium_ledger_proof_duration_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output is missing %q", want)
		}
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveProof("ok", time.Second)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Requests.WithLabelValues("/execute", "200").Inc()
	m.QueueDepth.Set(3)

	out := scrape(t, m)
	for _, want := range []string{
		`vybium_ledger_http_requests_total{code="200",route="/execute"} 1`,
		"vybium_ledger_pool_queue_depth 3",
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output is missing %q", want)
		}
	}
}
