package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	workflowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskroute_workflows_total",
			Help: "Total number of finished workflows by terminal status.",
		},
		[]string{"status"},
	)

	activeWorkflows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskroute_active_workflows",
			Help: "Number of workflows currently running or paused.",
		},
	)

	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskroute_step_duration_seconds",
			Help:    "Duration of completed workflow steps.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)
)

func init() {
	prometheus.MustRegister(workflowsTotal, activeWorkflows, stepDuration)
}
