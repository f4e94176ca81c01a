// Package metrics exposes Prometheus collectors for server lifecycle, polling,
// process supervision and publishing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// stateTransitions counts lifecycle transitions by server and edge
	stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_server_state_transitions_total",
			Help: "Total lifecycle state transitions by server, source and target state",
		},
		[]string{"server", "from", "to"},
	)

	// serverState is 1 for the current state of each server and 0 otherwise
	serverState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overseer_server_state",
			Help: "Current lifecycle state of each server (1 for the active state)",
		},
		[]string{"server", "state"},
	)

	// pollOutcomes counts finished polls
	pollOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_poll_outcomes_total",
			Help: "Total state polls by server, target and outcome",
		},
		[]string{"server", "target", "outcome"},
	)

	// pollDuration tracks how long polls ran before resolving
	pollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "overseer_poll_duration_seconds",
			Help:    "Duration of state polls by target and outcome",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"target", "outcome"},
	)

	// processExits counts terminated managed processes
	processExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_process_exits_total",
			Help: "Total terminated managed processes by server",
		},
		[]string{"server"},
	)

	// publishOperations counts per-deployable publish operations
	publishOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_publish_operations_total",
			Help: "Total publish operations by server, request type and result",
		},
		[]string{"server", "request", "result"},
	)
)

// States lists every lifecycle state label value, used to reset the state gauge.
var States = []string{"stopped", "starting", "started", "stopping"}

// RecordTransition counts a lifecycle transition and updates the state gauge.
func RecordTransition(server, from, to string) {
	stateTransitions.WithLabelValues(server, from, to).Inc()
	SetState(server, to)
}

// SetState marks state as the current state of server.
func SetState(server, state string) {
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		serverState.WithLabelValues(server, s).Set(v)
	}
}

// RecordPoll records the outcome and duration of a finished poll.
func RecordPoll(server, target, outcome string, d time.Duration) {
	pollOutcomes.WithLabelValues(server, target, outcome).Inc()
	pollDuration.WithLabelValues(target, outcome).Observe(d.Seconds())
}

// RecordProcessExit counts a terminated process.
func RecordProcessExit(server string) {
	processExits.WithLabelValues(server).Inc()
}

// RecordPublish counts a publish operation. result is "ok" or "error".
func RecordPublish(server, request, result string) {
	publishOperations.WithLabelValues(server, request, result).Inc()
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
