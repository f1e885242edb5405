package metrics

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process. Each process owns its own
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	MoviesCreated   prometheus.Counter
	MoviesDeleted   prometheus.Counter
	UploadBytes     prometheus.Counter
	LoginAttempts   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinefree_http_requests_total",
				Help: "HTTP requests served, by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cinefree_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds, by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		MoviesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinefree_movies_created_total",
			Help: "Movies added to the catalog.",
		}),
		MoviesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinefree_movies_deleted_total",
			Help: "Movies removed from the catalog.",
		}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cinefree_upload_bytes_total",
			Help: "Bytes of video stored by uploads.",
		}),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinefree_login_attempts_total",
				Help: "Admin login attempts, by result.",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.MoviesCreated,
		m.MoviesDeleted,
		m.UploadBytes,
		m.LoginAttempts,
	)
	return m
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records count and latency of every request. The route label is
// the chi route pattern so ids do not blow up cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snoop := httpsnoop.CaptureMetrics(next, w, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(snoop.Code)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(snoop.Duration.Seconds())
	})
}

// LoginResult records one login attempt as "success", "failure" or
// "rejected" (malformed request).
func (m *Metrics) LoginResult(result string) {
	m.LoginAttempts.WithLabelValues(result).Inc()
}
