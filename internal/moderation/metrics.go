package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modwarden_actions_recorded",
	Help: "Number of moderation actions written to the action log",
}, []string{"type"})

var actionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modwarden_action_failures",
	Help: "Number of moderation actions rejected because the action log failed",
}, []string{"type"})

var enforceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modwarden_enforce_failures",
	Help: "Number of recorded actions the platform refused to apply",
}, []string{"type"})

var escalations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modwarden_warn_escalations",
	Help: "Number of automatic escalations triggered by warn counts",
}, []string{"type"})

var timeoutsScheduled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modwarden_timeouts_scheduled",
	Help: "Number of timed actions registered with the scheduler and store",
})

var schedulingFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modwarden_timeout_scheduling_failures",
	Help: "Number of timed actions recorded without an enforced expiry",
})

var timeoutsCancelled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modwarden_timeouts_cancelled",
	Help: "Number of pending timeouts cancelled before firing",
})

var timeoutsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modwarden_timeouts_expired",
	Help: "Number of timeouts whose reversal ran",
}, []string{"type", "result"})
