package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics counts webhook dispatch outcomes and courier booking
// attempts.
type FulfillmentMetrics struct {
	webhookEvents   *prometheus.CounterVec
	courierAttempts *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the fulfillment metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Payment gateway webhook events by type and outcome.",
	}, []string{"event", "outcome"})
	courierAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_booking_attempts_total",
		Help: "Courier booking attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(webhookEvents, courierAttempts)
	return &FulfillmentMetrics{
		webhookEvents:   webhookEvents,
		courierAttempts: courierAttempts,
	}
}

// ObserveWebhook records one webhook dispatch outcome (processed, ignored, failed).
func (m *FulfillmentMetrics) ObserveWebhook(event, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

// ObserveCourierAttempt records one provider booking attempt (success, failure).
func (m *FulfillmentMetrics) ObserveCourierAttempt(provider, outcome string) {
	if m == nil || m.courierAttempts == nil {
		return
	}
	m.courierAttempts.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
