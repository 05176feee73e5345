package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pendingTimers = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "modwarden_scheduler_pending_timers",
	Help: "Number of armed moderation timers",
})

var firedTimers = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modwarden_scheduler_fired_timers",
	Help: "Number of moderation timers that ran their reversal",
})

var reconciledEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modwarden_scheduler_reconciled_entries",
	Help: "Number of stored timeouts handled at startup",
}, []string{"result"})
