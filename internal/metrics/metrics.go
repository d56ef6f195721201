// Package metrics содержит счётчики Prometheus сервиса панели заказов.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics объединяет метрики, публикуемые сервисом.
type Metrics struct {
	OrdersReceived      prometheus.Counter
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	StreamEmissions     prometheus.Counter
	LiveConnections     prometheus.Gauge
}

// New создаёт и регистрирует метрики в указанном реестре.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_received_total",
			Help: "Total number of orders accepted by the intake API",
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of push notifications delivered to the gateway",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of push delivery attempts rejected by the gateway",
		}),
		StreamEmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_emissions_total",
			Help: "Total number of order collection snapshots delivered to the reconciler",
		}),
		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "live_connections",
			Help: "Current number of websocket dashboard connections",
		}),
	}

	reg.MustRegister(
		m.OrdersReceived,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.StreamEmissions,
		m.LiveConnections,
	)

	return m
}
