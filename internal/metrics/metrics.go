// Package metrics holds the Prometheus collectors of the client and the
// process resource sampler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the client's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linera_client",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total number of requests sent to the node.",
		},
		[]string{"method", "outcome"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "linera_client",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Duration of requests sent to the node.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method"},
	)

	deployTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linera_client",
			Subsystem: "deploy",
			Name:      "state_transitions_total",
			Help:      "Deployment state machine transitions by entered state.",
		},
		[]string{"state"},
	)

	deployResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linera_client",
			Subsystem: "deploy",
			Name:      "results_total",
			Help:      "Finished deployments by terminal state.",
		},
		[]string{"result"},
	)

	watchEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "linera_client",
			Subsystem: "watch",
			Name:      "events_delivered_total",
			Help:      "Application events delivered to watch handlers.",
		},
	)

	watchReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "linera_client",
			Subsystem: "watch",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts of watch subscriptions.",
		},
	)

	processCPU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "linera_client",
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "CPU usage of the process at the last sample.",
		},
	)

	processRSS = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "linera_client",
			Subsystem: "process",
			Name:      "resident_memory_megabytes",
			Help:      "Resident memory of the process at the last sample.",
		},
	)
)

func init() {
	Registry.MustRegister(
		gatewayRequests,
		gatewayDuration,
		deployTransitions,
		deployResults,
		watchEvents,
		watchReconnects,
		processCPU,
		processRSS,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordGatewayRequest counts a node request and its duration.
func RecordGatewayRequest(method, outcome string, seconds float64) {
	gatewayRequests.WithLabelValues(method, outcome).Inc()
	gatewayDuration.WithLabelValues(method).Observe(seconds)
}

// RecordDeployTransition counts a deployment entering state.
func RecordDeployTransition(state string) {
	deployTransitions.WithLabelValues(state).Inc()
}

// RecordDeployResult counts a finished deployment.
func RecordDeployResult(result string) {
	deployResults.WithLabelValues(result).Inc()
}

// RecordWatchEvent counts an event handed to a watch handler.
func RecordWatchEvent() {
	watchEvents.Inc()
}

// RecordWatchReconnect counts a reconnect attempt.
func RecordWatchReconnect() {
	watchReconnects.Inc()
}
