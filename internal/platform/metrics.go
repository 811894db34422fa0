package platform

import "github.com/prometheus/client_golang/prometheus"

var platformLoad = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "taskroute_platform_load",
		Help: "Current load (0-100) reported by each execution platform.",
	},
	[]string{"platform"},
)

func init() {
	prometheus.MustRegister(platformLoad)
}
