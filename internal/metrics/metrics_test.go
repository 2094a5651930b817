package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSchedulingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveBooking("success", 0.01)
	m.ObserveBooking("conflict", 0.02)
	m.ObserveBooking("conflict", 0.02)
	m.ObserveStatusChange("pending", "confirmed", "success")
	m.ObserveStatusChange("", "confirmed", "not_found")
	m.ObserveHTTP("POST", "/appointments", "201")

	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("conflict")); got != 2 {
		t.Fatalf("expected 2 conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.statusChanges.WithLabelValues("unknown", "confirmed", "not_found")); got != 1 {
		t.Fatalf("expected unknown from label, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/appointments", "201")); got != 1 {
		t.Fatalf("expected one http request, got %v", got)
	}
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveBooking("success", 0.1)
	m.ObserveStatusChange("pending", "confirmed", "success")
	m.ObserveHTTP("GET", "/slots", "200")
}
