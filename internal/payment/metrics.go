package payment

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricCheckouts       = "phantomviews_payment_checkouts_total"
	MetricCheckoutLatency = "phantomviews_payment_checkout_duration_seconds"
	MetricWebhooks        = "phantomviews_payment_webhooks_total"
	MetricLicensesIssued  = "phantomviews_payment_licenses_issued_total"
)

// Metrics counts checkout and webhook outcomes per gateway.
type Metrics struct {
	checkouts       *prometheus.CounterVec
	checkoutLatency *prometheus.HistogramVec
	webhooks        *prometheus.CounterVec
	issued          *prometheus.CounterVec
}

// NewMetrics creates unregistered payment metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCheckouts,
				Help: "Checkout initializations by gateway and outcome",
			},
			[]string{"gateway", "outcome"},
		),
		checkoutLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricCheckoutLatency,
				Help:    "Time spent initializing a checkout with the gateway",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
			},
			[]string{"gateway"},
		),
		webhooks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricWebhooks,
				Help: "Webhook deliveries by gateway and result status",
			},
			[]string{"gateway", "status"},
		),
		issued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLicensesIssued,
				Help: "Licenses issued from payment webhooks by gateway and plan",
			},
			[]string{"gateway", "plan"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.checkouts, m.checkoutLatency, m.webhooks, m.issued} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeCheckout(gateway, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(gateway, outcome).Inc()
	m.checkoutLatency.WithLabelValues(gateway).Observe(took.Seconds())
}

func (m *Metrics) observeWebhook(gateway, status string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(gateway, status).Inc()
}

func (m *Metrics) observeIssued(gateway, plan string) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(gateway, plan).Inc()
}
