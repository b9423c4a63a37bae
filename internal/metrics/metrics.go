// Package metrics instruments the solver with Prometheus vectors on a
// private, in-process registry. No HTTP exporter is wired here — the
// observability surface is out of scope (§1); an embedder may mount
// Handler() on its own mux.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Metrics holds the counter/gauge vectors the Engine and domain services
// increment. Every transition in §4.7.5 touches Transitions.
type Metrics struct {
	registry *prometheus.Registry

	Transitions       *prometheus.CounterVec
	IntentsDiscovered *prometheus.CounterVec
	DeliverErrors     *prometheus.CounterVec
	SettlementPolls   *prometheus.CounterVec
	OrdersInFlight    prometheus.Gauge
}

// New constructs and registers every vector on a fresh, private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intent_solver",
			Name:      "order_transitions_total",
			Help:      "Order status transitions by standard, from_status, to_status.",
		}, []string{"standard", "from_status", "to_status"}),
		IntentsDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intent_solver",
			Name:      "intents_discovered_total",
			Help:      "Raw intents received from Discovery, by source.",
		}, []string{"source"}),
		DeliverErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intent_solver",
			Name:      "delivery_errors_total",
			Help:      "Delivery submission/confirmation errors by chain and error kind.",
		}, []string{"chain_id", "kind"}),
		SettlementPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intent_solver",
			Name:      "settlement_polls_total",
			Help:      "Settlement oracle polls by standard and outcome.",
		}, []string{"standard", "outcome"}),
		OrdersInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "intent_solver",
			Name:      "orders_in_flight",
			Help:      "Orders currently in a non-terminal status.",
		}),
	}

	reg.MustRegister(m.Transitions, m.IntentsDiscovered, m.DeliverErrors, m.SettlementPolls, m.OrdersInFlight)
	return m
}

// Handler exposes the private registry over HTTP, for an embedder that
// chooses to mount an observability surface; the solver itself never
// calls this.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
