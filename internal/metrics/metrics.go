package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moonlight"

// Label values.
const (
	ChannelInstanceUp = "instance_up"
	ChannelAlert      = "alert"
	ChannelRead       = "read"

	OutcomeIssued      = "issued"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"

	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	EventsDispatched *prometheus.CounterVec // by channel
	EventsDropped    *prometheus.CounterVec // by channel
	HandlerPanics    *prometheus.CounterVec // by channel
	AlertMessages    prometheus.Counter

	ReadAttempts    *prometheus.CounterVec // by outcome
	ReadCompletions *prometheus.CounterVec // by status
	PollExhausted   prometheus.Counter

	Deploys *prometheus.CounterVec // by status
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Events delivered to handlers, by channel.",
		}, []string{"channel"}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_dropped_total",
			Help:      "Events delivered while no handler was registered, by channel.",
		}, []string{"channel"}),
		HandlerPanics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "handler_panics_total",
			Help:      "Handler invocations that panicked, by channel.",
		}, []string{"channel"}),
		AlertMessages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "alert_messages_total",
			Help:      "Alert messages processed.",
		}),
		ReadAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "read_attempts_total",
			Help:      "Read request attempts, by outcome.",
		}, []string{"outcome"}),
		ReadCompletions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "read_completions_total",
			Help:      "Read request completions, by status.",
		}, []string{"status"}),
		PollExhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "exhausted_total",
			Help:      "Polling cycles that ran out of attempts.",
		}),
		Deploys: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "app",
			Name:      "deploys_total",
			Help:      "Statement deployments, by status.",
		}, []string{"status"}),
	}
}

// NewUnregistered returns collectors that are not exported anywhere.
func NewUnregistered() *Metrics {
	return New(nil)
}
