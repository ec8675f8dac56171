package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewGatewayRetriesTotal returns a Prometheus counter for the number of retry attempts performed by the order gateway
func NewGatewayRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Total number of retry attempts performed by the order gateway",
	})
}

// NewOfflineQueueDepth returns a Prometheus gauge for the number of requests waiting in the offline queue
func NewOfflineQueueDepth() prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "offline_queue_depth",
		Help: "Number of requests waiting in the offline queue",
	})
}

// NewTransitionsTotal returns a Prometheus counter vector for applied order transitions, labeled by operation and outcome
func NewTransitionsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of order transitions attempted, by operation and outcome",
	}, []string{"operation", "outcome"})
}

// NewReplayDropsTotal returns a Prometheus counter for queued requests dropped during replay
func NewReplayDropsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offline_replay_drops_total",
		Help: "Total number of queued requests dropped during replay because their order reached a terminal status",
	})
}

// NewNotificationsTotal returns a Prometheus counter for received order notifications
func NewNotificationsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_notifications_total",
		Help: "Total number of order notifications received from the push channels",
	})
}
