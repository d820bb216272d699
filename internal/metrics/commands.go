package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camctl",
		Subsystem: "host",
		Name:      "commands_total",
		Help:      "Host commands by method and outcome",
	}, []string{"method", "outcome"})

	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "camctl",
		Subsystem: "host",
		Name:      "command_duration_seconds",
		Help:      "Time from dispatch to reply",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"method"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camctl",
		Subsystem: "host",
		Name:      "events_dropped_total",
		Help:      "Channel payloads dropped because no listener was attached",
	}, []string{"channel"})
)

// RecordCommand counts a replied command and observes its latency.
func RecordCommand(method, outcome string, elapsed time.Duration) {
	commandsTotal.WithLabelValues(method, outcome).Inc()
	commandDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// IncEventsDropped counts a payload dropped on channel.
func IncEventsDropped(channel string) {
	eventsDropped.WithLabelValues(channel).Inc()
}
