package http

import (
	"net/http"
	"strings"
	"time"
)

// unmeteredPaths are operational endpoints left out of request metrics.
var unmeteredPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// apiRoutes are the API paths recorded under their own route label.
var apiRoutes = map[string]bool{
	"/api/login":         true,
	"/api/logout":        true,
	"/api/session-check": true,
	"/api/products":      true,
}

// MetricsMiddleware records request count and latency per method and API
// route. Operational endpoints are not recorded.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unmeteredPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := routeLabel(r.URL.Path)
			metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.RequestsTotal.WithLabelValues(r.Method, route, statusToLabel(rec.status)).Inc()
		})
	}
}

// routeLabel maps a request path to a bounded set of label values. Product
// IDs collapse into one route; unknown paths share "other".
func routeLabel(path string) string {
	switch {
	case apiRoutes[path]:
		return path
	case strings.HasPrefix(path, "/api/products/"):
		return "/api/products/{id}"
	default:
		return "other"
	}
}

// statusRecorder captures the status code written by the next handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// statusToLabel reports 1xx-3xx as "ok" (304 revalidations included) and
// everything else as "error".
func statusToLabel(code int) string {
	if code < http.StatusBadRequest {
		return "ok"
	}
	return "error"
}
