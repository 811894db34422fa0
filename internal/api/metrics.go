package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatched = "unmatched"

// Stream transports, used as the transport label.
const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskroute_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskroute_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, excluding status streams.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	statusStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskroute_status_streams",
			Help: "Number of open workflow status streams.",
		},
		[]string{"transport"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, statusStreams)
}

// trackStream counts an open status stream until the returned func is called.
func trackStream(transport string) func() {
	g := statusStreams.WithLabelValues(transport)
	g.Inc()
	return g.Dec
}

// metricsMiddleware records request count and duration, labelled by chi route
// pattern. Long-lived stream routes are counted but not timed.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		if !isStreamRoute(path) {
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		}
	})
}

func isStreamRoute(pattern string) bool {
	switch pattern {
	case "/v1/workflows/{id}/events", "/v1/workflows/{id}/ws":
		return true
	}
	return false
}

// routePattern extracts the matched chi route pattern, falling back to "unmatched".
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatched
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
