package simulated

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for step status.
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

var stepsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "taskroute_simulated_steps_total",
		Help: "Total number of steps run by the simulated backend.",
	},
	[]string{"platform", "status"},
)

func init() {
	prometheus.MustRegister(stepsTotal)
}
