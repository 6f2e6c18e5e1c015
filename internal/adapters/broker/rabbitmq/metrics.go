package rabbitmq

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usersync",
			Subsystem: "broker",
			Name:      "publish_total",
			Help:      "Published messages by routing key and outcome",
		},
		[]string{"routing_key", "status"},
	)

	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usersync",
			Subsystem: "broker",
			Name:      "deliveries_total",
			Help:      "Consumed messages by routing key and outcome (acked, requeued, rejected)",
		},
		[]string{"routing_key", "outcome"},
	)

	redeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usersync",
			Subsystem: "broker",
			Name:      "redeliveries_total",
			Help:      "Messages the broker flagged as redelivered",
		},
		[]string{"routing_key"},
	)

	handlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "usersync",
			Subsystem: "broker",
			Name:      "handler_duration_seconds",
			Help:      "Time spent in event handlers",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"routing_key"},
	)

	connectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "usersync",
			Subsystem: "broker",
			Name:      "connection_status",
			Help:      "Broker connection status (1 = connected, 0 = disconnected)",
		},
	)
)

const (
	outcomeAcked    = "acked"
	outcomeRequeued = "requeued"
	outcomeRejected = "rejected"
)
