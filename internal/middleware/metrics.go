package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vetlink/vetlink/internal/metrics"
)

// Metrics records request counts and latency by matched route pattern.
// It must wrap the ServeMux directly so r.Pattern is visible after serving.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
