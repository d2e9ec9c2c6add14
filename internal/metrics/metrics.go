package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors for the order and stock
// subsystems, backed by a private registry.
type Metrics struct {
	registry *prometheus.Registry

	OrdersCreated    prometheus.Counter
	OrderTransitions *prometheus.CounterVec
	Reservations     prometheus.Counter
	Releases         prometheus.Counter
	StockRejections  prometheus.Counter
	SyncWarnings     prometheus.Counter
	KitchenActive    prometheus.Gauge
}

// New creates a metrics set registered on its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created through the API",
		}),
		OrderTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transitions_total",
				Help: "Successful order state transitions",
			},
			[]string{"event"},
		),
		Reservations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_reservations_total",
			Help: "Stock reservations committed",
		}),
		Releases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_releases_total",
			Help: "Stock reservations released back to the ledger",
		}),
		StockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_rejections_total",
			Help: "Reservation attempts rejected for insufficient stock",
		}),
		SyncWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitchen_sync_warnings_total",
			Help: "Best-effort kitchen sync attempts that failed",
		}),
		KitchenActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kitchen_orders_active",
			Help: "Kitchen orders currently in the queue",
		}),
	}

	m.registry.MustRegister(
		m.OrdersCreated,
		m.OrderTransitions,
		m.Reservations,
		m.Releases,
		m.StockRejections,
		m.SyncWarnings,
		m.KitchenActive,
	)
	return m
}

// Handler exposes the registry for the metrics HTTP server.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
