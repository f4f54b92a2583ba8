// Package metrics provides Prometheus metrics for PulseBoard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "pulseboard"
)

// Alerting metrics
var (
	// AlertsActive tracks registered alerts by state.
	AlertsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "alerts",
			Help:      "Registered alerts by current state",
		},
		[]string{"state"},
	)

	// TransitionsTotal counts state transitions by target state.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "transitions_total",
			Help:      "Total alert state transitions by target state",
		},
		[]string{"state"},
	)

	// EvaluationsTotal counts condition evaluations by result (true, false, error).
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "evaluations_total",
			Help:      "Total condition evaluations by result",
		},
		[]string{"result"},
	)

	// WatchdogFiresTotal counts interval watchdog expirations.
	WatchdogFiresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "watchdog_fires_total",
			Help:      "Total interval watchdog expirations",
		},
	)
)

// Notification metrics
var (
	// NotificationsTotal counts outbound notifications by kind.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "notifications_total",
			Help:      "Total notifications dispatched by kind",
		},
		[]string{"kind"},
	)
)

// Record watcher metrics
var (
	// RecordsSeenTotal counts new-record detections by signal set.
	RecordsSeenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "records_seen_total",
			Help:      "Total new record arrivals detected by signal set",
		},
		[]string{"sigset"},
	)

	// PollErrorsTotal counts record store polling errors.
	PollErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "poll_errors_total",
			Help:      "Total record store polling errors",
		},
	)
)
