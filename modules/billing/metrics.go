package billing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes reported in the outcome label.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeInFlight  = "in_flight"
	OutcomeFailed    = "failed"
)

// Metrics holds the Prometheus collectors for the billing module.
type Metrics struct {
	WebhookEventsTotal *prometheus.CounterVec
	WebhookDuration    *prometheus.HistogramVec
	CheckoutLinksTotal *prometheus.CounterVec
	PortalLinksTotal   *prometheus.CounterVec
}

// NewMetrics creates the billing collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_total",
				Help: "Total number of webhook deliveries by event type and outcome",
			},
			[]string{"type", "outcome"},
		),
		WebhookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_webhook_duration_seconds",
				Help:    "Webhook handling duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"type"},
		),
		CheckoutLinksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_checkout_links_total",
				Help: "Total number of checkout link requests by tier, cycle and result",
			},
			[]string{"tier", "cycle", "result"},
		),
		PortalLinksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_portal_links_total",
				Help: "Total number of customer portal link requests by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.WebhookEventsTotal,
		m.WebhookDuration,
		m.CheckoutLinksTotal,
		m.PortalLinksTotal,
	)

	return m
}

func (m *Metrics) observeWebhook(eventType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	m.WebhookDuration.WithLabelValues(eventType).Observe(d.Seconds())
}

func (m *Metrics) observeCheckout(tier, cycle string, err error) {
	if m == nil {
		return
	}
	m.CheckoutLinksTotal.WithLabelValues(tier, cycle, result(err)).Inc()
}

func (m *Metrics) observePortal(err error) {
	if m == nil {
		return
	}
	m.PortalLinksTotal.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
