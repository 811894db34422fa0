package classifier

import "github.com/prometheus/client_golang/prometheus"

// Oracle fallback reasons.
const (
	reasonError       = "error"
	reasonTimeout     = "timeout"
	reasonUnparseable = "unparseable"
	reasonPartial     = "partial"
)

var oracleFallbacks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "taskroute_oracle_fallbacks_total",
		Help: "Classifications that fell back to the keyword heuristic, by reason.",
	},
	[]string{"reason"},
)

func init() {
	prometheus.MustRegister(oracleFallbacks)
	for _, r := range []string{reasonError, reasonTimeout, reasonUnparseable, reasonPartial} {
		oracleFallbacks.WithLabelValues(r)
	}
}
