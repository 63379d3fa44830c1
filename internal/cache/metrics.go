// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/recordsync/core/record"
)

const metricsNamespace = "recordsync_cache"

// Collector is a prometheus.Collector that reports the content and the
// hit/miss counters of a Cache each time it is scraped.
type Collector struct {
	cache *Cache

	entriesDesc *prometheus.Desc
	hitsDesc    *prometheus.Desc
	missesDesc  *prometheus.Desc
	groupsDesc  *prometheus.Desc
	eventsDesc  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewMetricsCollector returns a Collector for cache.
func NewMetricsCollector(cache *Cache) *Collector {
	return &Collector{
		cache: cache,
		entriesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "entries"),
			"The number of cached records.",
			[]string{"kind"}, nil,
		),
		hitsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "hits_total"),
			"The number of reads served from the cache.",
			[]string{"kind"}, nil,
		),
		missesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "misses_total"),
			"The number of reads the cache could not serve.",
			[]string{"kind"}, nil,
		),
		groupsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "loaded_groups"),
			"The number of fully loaded record groups.",
			[]string{"kind"}, nil,
		),
		eventsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "events_applied_total"),
			"The number of change events applied to the cache.",
			nil, nil,
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entriesDesc
	ch <- c.hitsDesc
	ch <- c.missesDesc
	ch <- c.groupsDesc
	ch <- c.eventsDesc
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.cache.Stats()
	for _, class := range []struct {
		kind  record.Kind
		stats ClassStats
	}{
		{record.KindTest, stats.Tests},
		{record.KindStep, stats.Steps},
		{record.KindPoint, stats.Points},
	} {
		kind := string(class.kind)
		ch <- prometheus.MustNewConstMetric(c.entriesDesc, prometheus.GaugeValue, float64(class.stats.Entries), kind)
		ch <- prometheus.MustNewConstMetric(c.hitsDesc, prometheus.CounterValue, float64(class.stats.Hits), kind)
		ch <- prometheus.MustNewConstMetric(c.missesDesc, prometheus.CounterValue, float64(class.stats.Misses), kind)
	}
	ch <- prometheus.MustNewConstMetric(c.groupsDesc, prometheus.GaugeValue, float64(stats.StepGroups), string(record.KindStep))
	ch <- prometheus.MustNewConstMetric(c.groupsDesc, prometheus.GaugeValue, float64(stats.PointGroups), string(record.KindPoint))
	ch <- prometheus.MustNewConstMetric(c.eventsDesc, prometheus.CounterValue, float64(stats.EventsApplied))
}
