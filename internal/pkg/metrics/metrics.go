/*
Package metrics owns the portal's Prometheus registry.

Guard decisions and auth operations are counted here and exposed on /metrics together
with the Go runtime and process collectors.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered by the portal.
type Metrics struct {
	registry *prometheus.Registry

	GuardDecisions *prometheus.CounterVec
	AuthOps        *prometheus.CounterVec
	ActivePortals  prometheus.Gauge
	LiveClients    prometheus.Gauge
}

// New creates a registry with the portal collectors already registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sims",
			Name:      "guard_decisions_total",
			Help:      "Route guard outcomes by decision kind.",
		}, []string{"kind"}),
		AuthOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sims",
			Name:      "auth_operations_total",
			Help:      "Auth store operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		ActivePortals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sims",
			Name:      "portal_sessions",
			Help:      "Portal sessions currently held in memory.",
		}),
		LiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sims",
			Name:      "live_clients",
			Help:      "Connected /live websocket clients.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.GuardDecisions,
		m.AuthOps,
		m.ActivePortals,
		m.LiveClients,
	)

	return m
}

// ObserveGuard counts one guard decision. A nil receiver is a no-op.
func (m *Metrics) ObserveGuard(kind string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(kind).Inc()
}

// ObserveAuth counts one auth operation. A nil receiver is a no-op.
func (m *Metrics) ObserveAuth(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AuthOps.WithLabelValues(op, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetLiveClients records the number of connected /live clients. A nil receiver is a no-op.
func (m *Metrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.LiveClients.Set(float64(n))
}
