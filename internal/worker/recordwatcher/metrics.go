// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package recordwatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/recordsync/core/changes"
	"github.com/juju/recordsync/core/record"
)

const metricsNamespace = "recordsync_watcher"

// Pass outcomes, used as metric labels.
const (
	outcomeChanged   = "changed"
	outcomeUnchanged = "unchanged"
	outcomeError     = "error"
	outcomeSkipped   = "skipped"
	outcomeDiscarded = "discarded"
)

// Collector is a prometheus.Collector that collects metrics about the
// record watcher. A nil *Collector records nothing.
type Collector struct {
	passes       *prometheus.CounterVec
	passDuration prometheus.Histogram
	changes      *prometheus.CounterVec
	fullReads    *prometheus.CounterVec
	dropped      *prometheus.CounterVec
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "passes_total",
				Help:      "The number of sampling passes, by outcome.",
			}, []string{"outcome"},
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "pass_duration_seconds",
				Help:      "The time taken by a completed sampling pass.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "changes_total",
				Help:      "The number of published record changes.",
			}, []string{"kind", "change"},
		),
		fullReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "full_reads_total",
				Help:      "The number of full record reads issued to the store.",
			}, []string{"kind"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dropped_rows_total",
				Help:      "The number of rows ignored for lacking a valid identity.",
			}, []string{"kind"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.passes.Describe(ch)
	c.passDuration.Describe(ch)
	c.changes.Describe(ch)
	c.fullReads.Describe(ch)
	c.dropped.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.passes.Collect(ch)
	c.passDuration.Collect(ch)
	c.changes.Collect(ch)
	c.fullReads.Collect(ch)
	c.dropped.Collect(ch)
}

func (c *Collector) pass(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.passes.WithLabelValues(outcome).Inc()
	if outcome != outcomeSkipped {
		c.passDuration.Observe(d.Seconds())
	}
}

func (c *Collector) observeEvent(event changes.Event) {
	if c == nil {
		return
	}
	add := func(kind record.Kind, added, changed, deleted int) {
		c.changes.WithLabelValues(string(kind), "added").Add(float64(added))
		c.changes.WithLabelValues(string(kind), "changed").Add(float64(changed))
		c.changes.WithLabelValues(string(kind), "deleted").Add(float64(deleted))
	}
	add(record.KindTest, len(event.Tests.Added), len(event.Tests.Changed), len(event.Tests.Deleted))
	add(record.KindStep, len(event.Steps.Added), len(event.Steps.Changed), len(event.Steps.Deleted))
	add(record.KindPoint, len(event.Points.Added), len(event.Points.Changed), len(event.Points.Deleted))
}

func (c *Collector) fullRead(kind record.Kind) {
	if c == nil {
		return
	}
	c.fullReads.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) droppedRows(kind record.Kind, n int) {
	if c == nil || n == 0 {
		return
	}
	c.dropped.WithLabelValues(string(kind)).Add(float64(n))
}
