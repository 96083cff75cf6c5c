package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScheduleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminders_schedule_failures_total",
		Help: "Total number of notification batches the facility rejected.",
	})

	CancelFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminders_cancel_failures_total",
		Help: "Total number of failed attempts to cancel pending notifications.",
	})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_deliveries_total",
		Help: "Notifications fired by the local facility, by category, channel and status.",
	}, []string{"category", "channel", "status"})

	PendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reminders_pending",
		Help: "Notifications currently pending in the local facility.",
	})
)
