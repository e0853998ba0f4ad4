// Package metrics exposes Prometheus metrics for catalog builds and response
// projection.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Projection outcomes.
const (
	OutcomeFiltered    = "filtered"
	OutcomePassthrough = "passthrough"
	OutcomeSkipped     = "skipped"
)

// Endpoint statuses recorded per catalog build.
const (
	StatusResolved = "resolved"
	StatusFailed   = "failed"
)

// Config holds metrics settings.
type Config struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// Collector owns every metric of the service. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	projections        *prometheus.CounterVec
	projectionDuration prometheus.Histogram
	catalogBuilds      prometheus.Counter
	catalogEndpoints   *prometheus.GaugeVec
	rateLimited        prometheus.Counter
}

// NewCollector registers the metrics on registry, or on a fresh registry
// when registry is nil.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "fielddoc"
	}

	c := &Collector{
		registry: registry,
		projections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projection_total",
			Help:      "Responses seen by the projection middleware, by outcome.",
		}, []string{"outcome"}),
		projectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "projection_duration_seconds",
			Help:      "Time spent decoding, filtering and re-encoding response bodies.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		catalogBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_builds_total",
			Help:      "Completed catalog builds.",
		}),
		catalogEndpoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_endpoints",
			Help:      "Endpoints in the last catalog build, by status.",
		}, []string{"status"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	registry.MustRegister(c.projections, c.projectionDuration, c.catalogBuilds, c.catalogEndpoints, c.rateLimited)
	return c
}

// RecordProjection records one response passing through the projection
// middleware.
func (c *Collector) RecordProjection(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.projections.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		c.projectionDuration.Observe(d.Seconds())
	}
}

// RecordCatalogBuild records the result of a catalog build.
func (c *Collector) RecordCatalogBuild(resolved, failed int) {
	if c == nil {
		return
	}
	c.catalogBuilds.Inc()
	c.catalogEndpoints.WithLabelValues(StatusResolved).Set(float64(resolved))
	c.catalogEndpoints.WithLabelValues(StatusFailed).Set(float64(failed))
}

// RecordRateLimited counts a rejected request.
func (c *Collector) RecordRateLimited() {
	if c == nil {
		return
	}
	c.rateLimited.Inc()
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
