package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are served as-is; everything else is folded to a route pattern.
var staticRoutes = map[string]bool{
	"/":                   true,
	"/tours":              true,
	"/license/activate":   true,
	"/license/deactivate": true,
	"/license/status":     true,
	"/license/validate":   true,
	"/checkout":           true,
	"/checkout/nonce":     true,
	"/events":             true,
	"/health":             true,
	"/ready":              true,
	"/metrics":            true,
}

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. /tours/42/payload becomes /tours/{id}/payload.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	parts := strings.Split(path, "/")

	switch {
	case strings.HasPrefix(path, "/tours/"):
		if len(parts) == 3 && parts[2] != "" {
			return "/tours/{id}"
		}
		if len(parts) == 4 && parts[2] != "" {
			switch parts[3] {
			case "payload", "embed":
				return "/tours/{id}/" + parts[3]
			}
		}
	case strings.HasPrefix(path, "/webhook/"):
		if len(parts) == 3 && parts[2] != "" {
			return "/webhook/{gateway}"
		}
	}

	// Unknown shapes pass through so new routes still show up.
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach Hijack and Flush on the
// underlying writer (websocket upgrades on /events).
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid cardinality issues.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			mrw := newMetricsResponseWriter(w)

			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
