package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one server, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	Validations      *prometheus.CounterVec
	Onboardings      *prometheus.CounterVec
	Issues           *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nfvpack_validations_total",
			Help: "Validations by kind (template, package) and result (valid, invalid, rejected)",
		}, []string{"kind", "result"}),
		Onboardings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nfvpack_onboardings_total",
			Help: "Package onboardings by result (created, unchanged, conflict, invalid, failed)",
		}, []string{"result"}),
		Issues: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nfvpack_issues_total",
			Help: "Issues reported by severity and code",
		}, []string{"severity", "code"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nfvpack_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nfvpack_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "nfvpack_http_requests_in_flight",
			Help: "Requests currently being served",
		}),
	}
}

// middleware records request counts and latency by chi route pattern.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
