package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for booking and lifecycle flows.
// A nil *SchedulingMetrics is valid and records nothing.
type SchedulingMetrics struct {
	bookingsTotal  *prometheus.CounterVec
	bookingLatency *prometheus.HistogramVec
	statusChanges  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnos",
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "turnos",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "Time spent admitting or rejecting a booking",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnos",
			Subsystem: "lifecycle",
			Name:      "status_changes_total",
			Help:      "Status change requests by edge and outcome",
		}, []string{"from", "to", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnos",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.statusChanges, m.httpRequests)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveStatusChange(from, to, outcome string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "unknown"
	}
	m.statusChanges.WithLabelValues(from, to, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveHTTP(method, route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, code).Inc()
}
