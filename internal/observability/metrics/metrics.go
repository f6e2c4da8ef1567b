package metrics

import "github.com/prometheus/client_golang/prometheus"

// LifecycleMetrics exposes counters/histograms for the appointment
// lifecycle: bookings, state transitions, payment reconciliation and
// reminder dispatch.
type LifecycleMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	paymentsTotal    *prometheus.CounterVec
	webhookLatency   *prometheus.HistogramVec
	remindersTotal   *prometheus.CounterVec
}

func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	m := &LifecycleMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Total successful state machine transitions",
		}, []string{"transition"}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "payments",
			Name:      "reconciliations_total",
			Help:      "Total payment reconciliation results",
		}, []string{"result"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "telemed",
			Subsystem: "payments",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of gateway webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "reminders",
			Name:      "dispatched_total",
			Help:      "Total reminders dispatched per threshold",
		}, []string{"threshold"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.paymentsTotal, m.webhookLatency, m.remindersTotal)
	return m
}

func (m *LifecycleMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *LifecycleMetrics) ObserveTransition(transition string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(transition).Inc()
}

func (m *LifecycleMetrics) ObservePayment(result string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(result).Inc()
}

func (m *LifecycleMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

func (m *LifecycleMetrics) ObserveReminder(threshold string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(threshold).Inc()
}
