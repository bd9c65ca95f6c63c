// Package metrics exposes Prometheus metrics for find-or-create calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "findorcreate"
	subsystem = ""
)

// Outcomes recorded by Collector.
const (
	OutcomeCreated = "created"
	OutcomeFound   = "found"
	OutcomeError   = "error"
)

// Collector counts calls by collection and outcome and observes their duration.
type Collector struct {
	Operations *prometheus.CounterVec
	Durations  *prometheus.HistogramVec
}

// NewCollector creates new metrics.
func NewCollector() *Collector {
	return &Collector{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operations_total",
				Help:      "Total number of find-or-create calls.",
			},
			[]string{"collection", "outcome"},
		),
		Durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Find-or-create round trip duration.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"collection"},
		),
	}
}

// Observe records one call.
func (c *Collector) Observe(collection string, isNew bool, err error, d time.Duration) {
	outcome := OutcomeFound
	switch {
	case err != nil:
		outcome = OutcomeError
	case isNew:
		outcome = OutcomeCreated
	}
	c.Operations.WithLabelValues(collection, outcome).Inc()
	c.Durations.WithLabelValues(collection).Observe(d.Seconds())
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.Operations.Describe(ch)
	c.Durations.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.Operations.Collect(ch)
	c.Durations.Collect(ch)
}

// check interfaces
var (
	_ prometheus.Collector = (*Collector)(nil)
)
