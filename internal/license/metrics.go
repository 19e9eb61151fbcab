package license

import "github.com/prometheus/client_golang/prometheus"

// Metric names.
const (
	MetricLicenseState       = "phantomviews_license_state"
	MetricLicenseTransitions = "phantomviews_license_transitions_total"
)

// Metrics tracks the license state for dashboards and alerts.
type Metrics struct {
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

// NewMetrics creates unregistered license metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: MetricLicenseState,
				Help: "1 for the current license state, 0 for the others",
			},
			[]string{"state"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLicenseTransitions,
				Help: "License state transitions by target state",
			},
			[]string{"state"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.state, m.transitions} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observe(s State) {
	for _, candidate := range []State{StateInactive, StateActive, StateExpired} {
		v := 0.0
		if candidate == s {
			v = 1
		}
		m.state.WithLabelValues(string(candidate)).Set(v)
	}
}

func (m *Metrics) transition(s State) {
	m.transitions.WithLabelValues(string(s)).Inc()
	m.observe(s)
}
