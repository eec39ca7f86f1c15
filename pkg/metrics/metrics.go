// Package metrics holds the Prometheus collectors for status lookups and aggregation passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ship_status"

// Lookup kinds.
const (
	KindComponent    = "component"
	KindSubComponent = "sub_component"
)

// Lookup and pass results.
const (
	ResultSuccess   = "success"
	ResultFallback  = "fallback"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	lookups        *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	passes         *prometheus.CounterVec
	passDuration   prometheus.Histogram
	lastPass       prometheus.Gauge
	snapshotStatus *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_lookups_total",
			Help:      "Status lookups issued, by entity kind and result.",
		}, []string{"kind", "result"}),
		lookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "status_lookup_duration_seconds",
			Help:      "Duration of individual status lookups.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_passes_total",
			Help:      "Aggregation passes, by result.",
		}, []string{"result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_pass_duration_seconds",
			Help:      "Wall-clock duration of completed aggregation passes.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_snapshot_timestamp_seconds",
			Help:      "Unix time at which the last snapshot was published.",
		}),
		snapshotStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_entities",
			Help:      "Entities in the last published snapshot, by kind and status.",
		}, []string{"kind", "status"}),
	}

	for _, c := range []prometheus.Collector{m.lookups, m.lookupDuration, m.passes, m.passDuration, m.lastPass, m.snapshotStatus} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveLookup records one status lookup.
func (m *Metrics) ObserveLookup(kind, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(kind, result).Inc()
	m.lookupDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObservePass records one aggregation pass. Duration is only observed for completed passes.
func (m *Metrics) ObservePass(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		m.passDuration.Observe(duration.Seconds())
	}
}

// SetSnapshot records the publication of a snapshot with the given per-kind status counts.
func (m *Metrics) SetSnapshot(published time.Time, counts map[string]map[string]int) {
	if m == nil {
		return
	}
	m.lastPass.Set(float64(published.Unix()))
	m.snapshotStatus.Reset()
	for kind, byStatus := range counts {
		for status, n := range byStatus {
			m.snapshotStatus.WithLabelValues(kind, status).Set(float64(n))
		}
	}
}

// LookupCounter exposes the lookup counter, mainly for tests.
func (m *Metrics) LookupCounter() prometheus.Collector {
	return m.lookups
}
