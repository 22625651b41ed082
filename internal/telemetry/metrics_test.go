package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetrics_HandlerServesRegisteredCollectors(t *testing.T) {
	m := New()
	m.BreakerTransitions.WithLabelValues("A", "Closed", "Open").Inc()
	m.MetricExpirations.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "polaris_breaker_transitions_total") {
		t.Fatal("expected breaker transitions metric in output")
	}
	if !strings.Contains(body, "polaris_metric_expirations_total") {
		t.Fatal("expected metric expirations counter in output")
	}
}

func TestMetrics_SeparateInstancesDontShareRegistry(t *testing.T) {
	a := New()
	b := New()
	a.MetricExpirations.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if strings.Contains(body, "polaris_metric_expirations_total 1") {
		t.Fatal("expected second Metrics instance to have an independent registry")
	}
}
