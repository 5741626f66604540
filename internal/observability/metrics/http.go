package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tphakala/preloadwatch/internal/logger"
)

// HTTPMetrics contains request metrics for the demo server.
type HTTPMetrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestNotices  *prometheus.CounterVec
	httpInFlight        prometheus.Gauge
}

// NewHTTPMetrics creates and registers HTTP request metrics.
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preloadwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"}, // path is the route pattern, not the raw URL
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preloadwatch_http_request_duration_seconds",
			Help:    "Time taken for HTTP requests, including the detector check",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount14),
		},
		[]string{"method", "path"},
	)

	m.httpRequestNotices = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preloadwatch_http_request_notices_total",
			Help: "Total number of notices raised while serving requests, by route",
		},
		[]string{"method", "path"},
	)

	m.httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "preloadwatch_http_requests_in_flight",
			Help: "Number of requests currently being served",
		},
	)
}

// RequestStarted marks a request as in flight.
func (m *HTTPMetrics) RequestStarted() {
	m.httpInFlight.Inc()
}

// RecordRequest records a finished request and the notices it raised.
func (m *HTTPMetrics) RecordRequest(method, path string, status int, duration time.Duration, notices int) {
	m.httpInFlight.Dec()
	path = labelOrUnknown(path)
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if notices > 0 {
		m.httpRequestNotices.WithLabelValues(method, path).Add(float64(notices))
	}
}

// InFlight returns the current number of in-flight requests.
func (m *HTTPMetrics) InFlight() float64 {
	metric := &dto.Metric{}
	if err := m.httpInFlight.Write(metric); err != nil {
		GetLogger().Warn("failed to read in-flight request gauge", logger.Error(err))
		return 0
	}
	if metric.Gauge != nil && metric.Gauge.Value != nil {
		return *metric.Gauge.Value
	}
	return 0
}

// Collect implements the prometheus.Collector interface.
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.httpRequestsTotal.Collect(ch)
	m.httpRequestDuration.Collect(ch)
	m.httpRequestNotices.Collect(ch)
	m.httpInFlight.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.httpRequestsTotal.Describe(ch)
	m.httpRequestDuration.Describe(ch)
	m.httpRequestNotices.Describe(ch)
	m.httpInFlight.Describe(ch)
}
