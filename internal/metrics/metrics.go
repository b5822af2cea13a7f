// Package metrics provides Prometheus metrics for the dashboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure stages of the local siren.
const (
	StageStart   = "start"
	StageStop    = "stop"
	StageRebuild = "rebuild"
	StageMissing = "missing_handle"
)

// Publish outcomes.
const (
	OutcomeSent         = "sent"
	OutcomeFailed       = "failed"
	OutcomeDisconnected = "disconnected"
)

// KindIgnored labels inbound payloads that are neither ALERT nor STOP.
const KindIgnored = "ignored"

var (
	// MessagesReceivedTotal counts inbound broker messages by kind:
	// the payload itself ("ALERT", "STOP") or KindIgnored.
	MessagesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cucoon_messages_received_total",
		Help: "Total number of inbound broker messages, by kind.",
	}, []string{"kind"})

	// StateTransitionsTotal counts alert state changes by target state and source.
	StateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cucoon_state_transitions_total",
		Help: "Total number of alert state changes, by target state and trigger source.",
	}, []string{"state", "source"})

	// AlarmStartsTotal counts successful siren starts.
	AlarmStartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cucoon_alarm_starts_total",
		Help: "Total number of times the local siren started playing.",
	})

	// AlarmFailuresTotal counts siren failures by stage.
	AlarmFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cucoon_alarm_failures_total",
		Help: "Total number of local siren failures, by stage.",
	}, []string{"stage"})

	// PublishesTotal counts outbound publishes by payload and outcome.
	PublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cucoon_publishes_total",
		Help: "Total number of outbound broker publishes, by payload and outcome.",
	}, []string{"payload", "outcome"})

	// AlertActive is 1 while the dashboard is in ALERT.
	AlertActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cucoon_alert_active",
		Help: "1 while the monitored system is in ALERT, 0 otherwise.",
	})

	// BrokerConnectionStatus is 0 disconnected, 1 connecting, 2 connected.
	BrokerConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cucoon_broker_connection_status",
		Help: "Broker connection status: 0 disconnected, 1 connecting, 2 connected.",
	})
)

// IncAlarmFailure records a siren failure at the given stage.
func IncAlarmFailure(stage string) {
	if stage == "" {
		stage = "unknown"
	}

	AlarmFailuresTotal.WithLabelValues(stage).Inc()
}

// IncMessage records an inbound message. Known payloads are labelled by
// their literal text, anything else as KindIgnored.
func IncMessage(payload string, known bool) {
	if !known {
		payload = KindIgnored
	}

	MessagesReceivedTotal.WithLabelValues(payload).Inc()
}

// IncPublish records an outbound publish attempt.
func IncPublish(payload, outcome string) {
	PublishesTotal.WithLabelValues(payload, outcome).Inc()
}

// SetAlertActive mirrors the alert state into the gauge.
func SetAlertActive(active bool) {
	if active {
		AlertActive.Set(1)
		return
	}

	AlertActive.Set(0)
}
