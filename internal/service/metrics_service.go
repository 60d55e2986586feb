package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the core write pipelines. A nil receiver is a no-op so
// callers never guard their observations.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	resultsUpserted prometheus.Counter
	importsSynced   prometheus.Counter
	promoted        prometheus.Counter
}

// NewMetricsService registers the core Prometheus collectors.
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

	resultsUpserted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "results_upserted_total",
		Help: "Result rows created or updated by batch upserts",
	})

	importsSynced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cbt_imports_synced_total",
		Help: "CBT score imports written into results",
	})

	promoted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "students_promoted_total",
		Help: "Students moved by promotion batches",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, resultsUpserted, importsSynced, promoted, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		resultsUpserted: resultsUpserted,
		importsSynced:   importsSynced,
		promoted:        promoted,
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

// ObserveHTTPRequest records one request's method, route and outcome.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// AddResultsUpserted counts result rows written by batch upserts.
func (m *MetricsService) AddResultsUpserted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.resultsUpserted.Add(float64(n))
}

// AddImportsSynced counts CBT imports that landed in results.
func (m *MetricsService) AddImportsSynced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importsSynced.Add(float64(n))
}

// AddStudentsPromoted counts students moved by promotion batches.
func (m *MetricsService) AddStudentsPromoted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.promoted.Add(float64(n))
}
