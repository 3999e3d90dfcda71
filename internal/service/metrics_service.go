package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface
// and the session lifecycle.
type MetricsService struct {
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	loginTotal         *prometheus.CounterVec
	sessionsSuperseded prometheus.Counter
	sessionsEnded      *prometheus.CounterVec
	ipResolutions      *prometheus.CounterVec
	ipAttempts         prometheus.Histogram
	jobsDropped        *prometheus.CounterVec
	rateLimited        *prometheus.CounterVec

	requestCount uint64
	loginCount   uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	loginTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_logins_total",
		Help: "Login attempts by outcome code",
	}, []string{"outcome"})

	sessionsSuperseded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_superseded_total",
		Help: "Sessions closed because a newer login superseded them",
	})

	sessionsEnded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_ended_total",
		Help: "Sessions deactivated by logout reason",
	}, []string{"reason"})

	ipResolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ip_resolutions_total",
		Help: "IP resolutions by winning source and outcome",
	}, []string{"source", "outcome"})

	ipAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ip_resolution_attempts",
		Help:    "Strategies tried per IP resolution",
		Buckets: []float64{1, 2, 3, 4, 5},
	})

	jobsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "background_jobs_dropped_total",
		Help: "Background jobs discarded after a full buffer or exhausted retries",
	}, []string{"queue"})

	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter per bucket",
	}, []string{"bucket"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, loginTotal, sessionsSuperseded, sessionsEnded,
		ipResolutions, ipAttempts, jobsDropped, rateLimited, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		loginTotal:         loginTotal,
		sessionsSuperseded: sessionsSuperseded,
		sessionsEnded:      sessionsEnded,
		ipResolutions:      ipResolutions,
		ipAttempts:         ipAttempts,
		jobsDropped:        jobsDropped,
		rateLimited:        rateLimited,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordLogin counts a login attempt. outcome is "success" or an error code.
func (m *MetricsService) RecordLogin(outcome string, superseded int64) {
	if m == nil {
		return
	}
	m.loginTotal.WithLabelValues(outcome).Inc()
	if superseded > 0 {
		m.sessionsSuperseded.Add(float64(superseded))
	}
	atomic.AddUint64(&m.loginCount, 1)
}

// RecordSessionsEnded counts deactivated sessions for reason.
func (m *MetricsService) RecordSessionsEnded(reason string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.sessionsEnded.WithLabelValues(reason).Add(float64(count))
}

// ObserveIPResolution implements iplookup.Observer.
func (m *MetricsService) ObserveIPResolution(source string, ok bool, attempts int) {
	if m == nil {
		return
	}
	outcome := "resolved"
	if !ok {
		outcome = "exhausted"
		source = "none"
	}
	m.ipResolutions.WithLabelValues(source, outcome).Inc()
	m.ipAttempts.Observe(float64(attempts))
}

// RecordJobDropped counts a background job that will not be retried.
func (m *MetricsService) RecordJobDropped(queue string) {
	if m == nil {
		return
	}
	m.jobsDropped.WithLabelValues(queue).Inc()
}

// RecordRateLimited counts a request rejected by the limiter.
func (m *MetricsService) RecordRateLimited(bucket string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(bucket).Inc()
}

// Totals returns the number of observed requests and login attempts.
func (m *MetricsService) Totals() (requests, logins uint64) {
	if m == nil {
		return 0, 0
	}
	return atomic.LoadUint64(&m.requestCount), atomic.LoadUint64(&m.loginCount)
}
