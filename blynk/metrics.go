package blynk

import "github.com/prometheus/client_golang/prometheus"

var connectedGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "blynk",
		Subsystem: "client",
		Name:      "connected",
		Help:      "Whether the client is connected to the broker.",
	},
)

var receivedCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "blynk",
		Subsystem: "client",
		Name:      "messages_received_total",
		Help:      "Total number of messages received.",
	}, []string{"topic"},
)

var publishedCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "blynk",
		Subsystem: "client",
		Name:      "messages_published_total",
		Help:      "Total number of messages published.",
	}, []string{"topic"},
)

var publishFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "blynk",
		Subsystem: "client",
		Name:      "publish_failures_total",
		Help:      "Total number of publishes rejected by the transport.",
	}, []string{"topic"},
)

var handlerErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "blynk",
		Subsystem: "client",
		Name:      "handler_errors_total",
		Help:      "Total number of handler errors and panics.",
	}, []string{"event"},
)

func init() {
	prometheus.MustRegister(connectedGauge)
	prometheus.MustRegister(receivedCounter)
	prometheus.MustRegister(publishedCounter)
	prometheus.MustRegister(publishFailures)
	prometheus.MustRegister(handlerErrors)
}
