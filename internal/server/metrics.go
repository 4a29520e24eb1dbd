package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// streamRoutes are long-lived routes left out of the latency histogram.
var streamRoutes = map[string]struct{}{
	"/signals": {},
}

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	answers     *prometheus.CounterVec
	signals     *prometheus.CounterVec
	subscribers prometheus.Gauge
}

// NewMetrics registers the service collectors plus the Go runtime collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorbar_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tutorbar_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		),
		answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorbar_answers_total",
				Help: "Total number of logged answers, labeled by result.",
			},
			[]string{"result"},
		),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorbar_signals_total",
				Help: "Total number of broadcast learning signals, labeled by name.",
			},
			[]string{"name"},
		),
		subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tutorbar_signal_streams",
				Help: "Number of open signal streams.",
			},
		),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.answers,
		m.signals,
		m.subscribers,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeAnswer(correct bool) {
	result := "incorrect"
	if correct {
		result = "correct"
	}
	m.answers.WithLabelValues(result).Inc()
}

func (m *Metrics) observeSignal(name string) {
	m.signals.WithLabelValues(name).Inc()
}

// middleware records request counts and latencies by route pattern.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		if _, ok := streamRoutes[route]; ok {
			// A stream's duration is the whole connection.
			return
		}
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
