package webserver

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lachlan2k/storefront-gate/internal/accesscontrol"
)

type navigationMetrics struct {
	decisions *prometheus.CounterVec
}

func newNavigationMetrics(reg prometheus.Registerer) *navigationMetrics {
	m := &navigationMetrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "navigation_decisions_total",
			Help:      "Page navigations by guard outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.decisions)
	return m
}

func (m *navigationMetrics) observe(d accesscontrol.Decision) {
	m.decisions.WithLabelValues(d.Outcome.String()).Inc()
}
