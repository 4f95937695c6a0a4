// Package metrics exposes the watcher's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Check outcome label values.
const (
	OutcomeMatch   = "match"
	OutcomeNoMatch = "no_match"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Notification status label values.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Metrics struct {
	CyclesTotal         prometheus.Counter
	CycleDuration       prometheus.Histogram
	ChecksTotal         *prometheus.CounterVec
	ChecksInflight      prometheus.Gauge
	ActiveSubscriptions prometheus.Gauge
	NotificationsTotal  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "diningwatch_poll_cycles_total",
			Help: "Total number of completed poll cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "diningwatch_poll_cycle_duration_seconds",
			Help:    "Duration of a full poll cycle",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diningwatch_poll_checks_total",
			Help: "Total number of availability checks by outcome",
		}, []string{"outcome"}),
		ChecksInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diningwatch_checks_inflight",
			Help: "Availability checks currently in flight",
		}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diningwatch_active_subscriptions",
			Help: "Active subscriptions seen by the most recent cycle snapshot",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diningwatch_notifications_total",
			Help: "Total notification dispatch attempts by status",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.ChecksTotal,
		m.ChecksInflight,
		m.ActiveSubscriptions,
		m.NotificationsTotal,
	)
	return m
}
