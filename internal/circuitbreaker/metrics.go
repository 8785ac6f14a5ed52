package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citecheck_circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=open)",
		},
		[]string{"endpoint"},
	)

	breakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citecheck_circuit_breaker_requests_total",
			Help: "Total requests observed by the circuit breaker",
		},
		[]string{"endpoint", "state", "result"},
	)

	breakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citecheck_circuit_breaker_trips_total",
			Help: "Total circuit breaker trips",
		},
		[]string{"endpoint"},
	)

	breakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citecheck_circuit_breaker_state_changes_total",
			Help: "Total circuit breaker state changes",
		},
		[]string{"endpoint", "from_state", "to_state"},
	)
)

func recordRequest(endpoint string, state State, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	breakerRequests.WithLabelValues(endpoint, state.String(), result).Inc()
}

func recordTrip(endpoint string) {
	breakerTrips.WithLabelValues(endpoint).Inc()
	breakerState.WithLabelValues(endpoint).Set(float64(StateOpen))
}

func recordStateChange(endpoint string, from, to State) {
	breakerStateChanges.WithLabelValues(endpoint, from.String(), to.String()).Inc()
	breakerState.WithLabelValues(endpoint).Set(float64(to))
}
