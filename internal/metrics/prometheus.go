// Package metrics exports cache and HTTP observations to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dashboard_cache"

// Prometheus implements cache.Metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	lookups   *prometheus.CounterVec
	fetches   *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	persists  *prometheus.CounterVec

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheus creates and registers the collectors. Go runtime and process
// collectors are registered as well.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Cache lookups by tier and result.",
			},
			[]string{"tier", "result"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Dataset requests by the source that answered them.",
			},
			[]string{"source"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_resolutions_total",
				Help:      "Store data resolutions by fallback step.",
			},
			[]string{"source"},
		),
		persists: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "durable_writes_total",
				Help:      "Durable tier writes by result.",
			},
			[]string{"result"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "The total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "The HTTP request latencies in seconds",
			},
			[]string{"method", "endpoint"},
		),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.lookups,
		p.fetches,
		p.fallbacks,
		p.persists,
		p.requestsTotal,
		p.requestDuration,
	)
	return p
}

// Registry returns the registry holding every collector.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) ObserveLookup(tier string, hit bool) {
	p.lookups.WithLabelValues(tier, result(hit, "hit", "miss")).Inc()
}

func (p *Prometheus) ObserveFetch(source string) {
	p.fetches.WithLabelValues(source).Inc()
}

func (p *Prometheus) ObserveFallback(source string) {
	p.fallbacks.WithLabelValues(source).Inc()
}

func (p *Prometheus) ObservePersist(ok bool) {
	p.persists.WithLabelValues(result(ok, "ok", "error")).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies per route.
func (p *Prometheus) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// let the error handler set the final status before it is recorded
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			p.requestsTotal.WithLabelValues(method, path, status).Inc()
			p.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
