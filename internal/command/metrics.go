package command

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modwarden_commands_handled",
	Help: "Number of commands dispatched, by command and outcome",
}, []string{"command", "outcome"})

var messagesFlagged = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modwarden_messages_flagged",
	Help: "Number of messages that contained blacklisted words",
})
