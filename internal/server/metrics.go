// Package server exposes Prometheus metrics describing the relay's live
// connection population and message traffic.
package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the relay's operational counters and gauges. All fields
// are registered against the registerer passed to NewMetrics so tests can use
// isolated registries.
type Metrics struct {
	ConnectionsActive     prometheus.Gauge
	GroupMembers          *prometheus.GaugeVec
	BroadcastsTotal       prometheus.Counter
	DeliveriesTotal       prometheus.Counter
	DeliveryFailuresTotal prometheus.Counter
	EvictionsTotal        prometheus.Counter
	ReapedTotal           prometheus.Counter
	AuthFailuresTotal     prometheus.Counter
}

// NewMetrics registers and returns the relay metric set. A nil registerer
// creates an unexported registry, which is convenient for tests that do not
// scrape.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Current number of authenticated WebSocket connections",
		}),
		GroupMembers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_group_connections",
			Help: "Current number of connections bound to each group",
		}, []string{"group"}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_broadcasts_total",
			Help: "Total number of group broadcasts processed",
		}),
		DeliveriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_broadcast_deliveries_total",
			Help: "Total number of per-recipient broadcast deliveries",
		}),
		DeliveryFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_broadcast_delivery_failures_total",
			Help: "Total number of failed per-recipient deliveries",
		}),
		EvictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_evictions_total",
			Help: "Total number of connections closed by membership eviction",
		}),
		ReapedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_reaped_connections_total",
			Help: "Total number of connections reclaimed by the health monitor",
		}),
		AuthFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_auth_failures_total",
			Help: "Total number of handshakes rejected for bad credentials",
		}),
	}
}
