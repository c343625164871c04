package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	LoginsTotal        *prometheus.CounterVec
	UsageRecordedTotal prometheus.Counter
	AccountsTotal      prometheus.Gauge
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grokvideo_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grokvideo_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grokvideo_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"result"},
		),
		UsageRecordedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "grokvideo_videos_recorded_total",
				Help: "Video generations recorded against quotas",
			},
		),
		AccountsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "grokvideo_accounts_total",
				Help: "Number of subscriber accounts, refreshed on admin list",
			},
		),
	}
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.UsageRecordedTotal,
		m.AccountsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns the /metrics exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps a handler with request count and duration collection.
// The path label is the registered route, not the raw URL, so cardinality
// stays bounded.
func (m *Metrics) Instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
