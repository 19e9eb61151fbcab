package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRateLimitRequests     = "phantomviews_rate_limit_requests_total"
	MetricRateLimitBlocked      = "phantomviews_rate_limit_blocked_total"
	MetricRateLimitRedisErrors  = "phantomviews_rate_limit_redis_errors_total"
	MetricHTTPRequestDuration   = "phantomviews_http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "phantomviews_http_requests_total"
	MetricHTTPRequestSizeBytes  = "phantomviews_http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "phantomviews_http_response_size_bytes"
	MetricIdempotencyOutcomes   = "phantomviews_idempotency_requests_total"
)

// Idempotency outcomes, as recorded by the Idempotency middleware.
const (
	IdempotencyReplayed = "replayed"
	IdempotencyConflict = "conflict"
	IdempotencyStored   = "stored"
	IdempotencyReleased = "released"
)

// Metrics holds the collectors shared by the HTTP middleware. A nil *Metrics
// records nothing.
type Metrics struct {
	rateLimitRequests    *prometheus.CounterVec
	rateLimitBlocked     *prometheus.CounterVec
	rateLimitRedisErrors prometheus.Counter
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestSize      *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec
	idempotency          *prometheus.CounterVec
}

// NewMetrics creates unregistered middleware metrics.
func NewMetrics() *Metrics {
	httpLabels := []string{"method", "path", "status"}
	rateLabels := []string{"endpoint", "key_type"}
	// 100 B to ~1 MB covers tour bodies, which are capped at 2 MiB.
	sizeBuckets := prometheus.ExponentialBuckets(100, 4, 8)

	return &Metrics{
		rateLimitRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitRequests,
			Help: "Rate limit checks by endpoint and key type",
		}, rateLabels),
		rateLimitBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitBlocked,
			Help: "Requests rejected by the rate limiter",
		}, rateLabels),
		rateLimitRedisErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitRedisErrors,
			Help: "Redis failures during rate limiting; the request was let through",
		}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestDuration,
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 10, 45},
		}, httpLabels),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequestsTotal,
			Help: "HTTP requests by method, route and status",
		}, httpLabels),
		httpRequestSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestSizeBytes,
			Help:    "HTTP request body size in bytes",
			Buckets: sizeBuckets,
		}, httpLabels),
		httpResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPResponseSizeBytes,
			Help:    "HTTP response body size in bytes",
			Buckets: sizeBuckets,
		}, httpLabels),
		idempotency: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricIdempotencyOutcomes,
			Help: "Requests carrying an Idempotency-Key, by route and outcome",
		}, []string{"route", "outcome"}),
	}
}

// Collectors returns every collector, for registration and tests.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rateLimitRequests,
		m.rateLimitBlocked,
		m.rateLimitRedisErrors,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpRequestSize,
		m.httpResponseSize,
		m.idempotency,
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRateLimitRequests counts one rate limit check.
func (m *Metrics) IncRateLimitRequests(endpoint, keyType string) {
	if m == nil {
		return
	}
	m.rateLimitRequests.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitBlocked counts one rejected request.
func (m *Metrics) IncRateLimitBlocked(endpoint, keyType string) {
	if m == nil {
		return
	}
	m.rateLimitBlocked.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitRedisErrors counts one fail-open event.
func (m *Metrics) IncRateLimitRedisErrors() {
	if m == nil {
		return
	}
	m.rateLimitRedisErrors.Inc()
}

// ObserveHTTPRequest records one finished request. path must already be
// normalized to its route pattern.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64, requestSize, responseSize int64) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": status}
	m.httpRequestDuration.With(labels).Observe(duration)
	m.httpRequestsTotal.With(labels).Inc()
	m.httpRequestSize.With(labels).Observe(float64(requestSize))
	m.httpResponseSize.With(labels).Observe(float64(responseSize))
}

// IncIdempotency counts one keyed request by outcome.
func (m *Metrics) IncIdempotency(route, outcome string) {
	if m == nil {
		return
	}
	m.idempotency.WithLabelValues(route, outcome).Inc()
}
