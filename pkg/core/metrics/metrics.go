// Package metrics records projection telemetry on a private Prometheus
// registry: polygon outcomes and durations, years grown, step failures and
// DQ ceiling clamps.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded against vdyp_forward_polygons_total.
const (
	OutcomeProjected = "projected"
	OutcomeFailed    = "failed"
)

// Collector owns the projection metrics. It satisfies the engine's and the
// pipeline's observer interfaces.
type Collector struct {
	registry *prometheus.Registry

	polygons       *prometheus.CounterVec
	polygonLatency prometheus.Histogram
	yearsGrown     prometheus.Counter
	stepErrors     *prometheus.CounterVec
	dqLimits       prometheus.Counter
}

// NewCollector creates a collector under namespace ("vdyp_forward" when empty).
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "vdyp_forward"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.polygons = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polygons_total",
			Help:      "Polygons processed, by outcome (projected, failed)",
		},
		[]string{"outcome"},
	)

	c.polygonLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "polygon_duration_seconds",
			Help:      "Time taken to project one polygon to its target year",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
	)

	c.yearsGrown = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "years_grown_total",
			Help:      "Polygon-years grown across all polygons",
		},
	)

	c.stepErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_errors_total",
			Help:      "Polygon failures by the execution step that raised them",
		},
		[]string{"step"},
	)

	c.dqLimits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dq_limit_applied_total",
			Help:      "Years in which quadratic mean diameter growth was clamped at its ceiling",
		},
	)

	c.registry.MustRegister(c.polygons, c.polygonLatency, c.yearsGrown, c.stepErrors, c.dqLimits)
	return c
}

// Registry returns the collector's registry for exposition.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordPolygon records one polygon outcome and how long it took.
func (c *Collector) RecordPolygon(outcome string, d time.Duration) {
	c.polygons.WithLabelValues(outcome).Inc()
	c.polygonLatency.Observe(d.Seconds())
}

func (c *Collector) RecordYearGrown() {
	c.yearsGrown.Inc()
}

func (c *Collector) RecordStepError(step string) {
	c.stepErrors.WithLabelValues(step).Inc()
}

func (c *Collector) RecordDQLimitApplied() {
	c.dqLimits.Inc()
}

// NoOpCollector discards everything.
type NoOpCollector struct{}

func (NoOpCollector) RecordPolygon(string, time.Duration) {}
func (NoOpCollector) RecordYearGrown()                    {}
func (NoOpCollector) RecordStepError(string)              {}
func (NoOpCollector) RecordDQLimitApplied()               {}
