// Package metrics exposes Prometheus counters for the reporting service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ReportsCreated prometheus.Counter
	Confirmations  prometheus.Counter
	AdminActions   *prometheus.CounterVec
}

// New registers the service counters on the given registry. Pass a fresh
// registry per server instance so tests do not collide.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReportsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riverwatch_reports_created_total",
			Help: "Total reports submitted",
		}),
		Confirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riverwatch_confirmations_total",
			Help: "Total report confirmations",
		}),
		AdminActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riverwatch_admin_actions_total",
			Help: "Total admin actions by kind",
		}, []string{"action"}),
	}
	if reg != nil {
		reg.MustRegister(m.ReportsCreated, m.Confirmations, m.AdminActions)
	}
	return m
}

// Nop returns unregistered counters for callers that do not scrape.
func Nop() *Metrics {
	return New(nil)
}
