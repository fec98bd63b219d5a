package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	IdentitiesRegistered  *prometheus.CounterVec
	IdentitiesDeactivated prometheus.Counter
	RegistryDepth         prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		IdentitiesRegistered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "affinet_identities_registered_total",
			Help: "Total number of identities registered, by role",
		}, []string{"role"}),
		IdentitiesDeactivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "affinet_identities_deactivated_total",
			Help: "Total number of identities soft-deactivated",
		}),
		RegistryDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "affinet_registry_max_depth",
			Help: "Deepest referral-tree level observed at registration",
		}),
	}
}

func (m *Metrics) IncrementRegistered(role string) {
	if m == nil {
		return
	}
	m.IdentitiesRegistered.WithLabelValues(role).Inc()
}

func (m *Metrics) IncrementDeactivated() {
	if m == nil {
		return
	}
	m.IdentitiesDeactivated.Inc()
}

func (m *Metrics) ObserveDepth(depth int) {
	if m == nil {
		return
	}
	m.RegistryDepth.Set(float64(depth))
}
