package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconcilePasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_reconcile_passes_total",
		Help: "Reconciliation passes by outcome.",
	}, []string{"outcome"})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reminders_reconcile_latency_seconds",
		Help:    "Duration of a full cancel-compile-schedule pass.",
		Buckets: prometheus.DefBuckets,
	})

	CoalescedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminders_reconcile_coalesced_total",
		Help: "Reconciliation requests that replaced an already queued one.",
	})

	ScheduledReminders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reminders_scheduled",
		Help: "Preference-driven reminders scheduled by the last successful pass.",
	})
)
