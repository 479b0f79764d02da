package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	CapturesStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiorec_captures_started_total",
			Help: "Total number of capture processes launched",
		},
	)

	CapturesFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiorec_captures_finished_total",
			Help: "Total number of captures finalized, by terminal status",
		},
		[]string{"status"}, // COMPLETE, PARTIAL, FAILED
	)

	StartFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiorec_start_failures_total",
			Help: "Jobs degraded to FAILED before capture, by cause",
		},
		[]string{"cause"}, // probe, publish, window, station
	)

	RecurrenceInstancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiorec_recurrence_instances_total",
			Help: "Recurring instances generated, by trigger",
		},
		[]string{"trigger"}, // completion, sweep
	)

	ReconciledJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radiorec_reconciled_jobs_total",
			Help: "Jobs resolved by startup reconciliation, by outcome",
		},
		[]string{"outcome"}, // restarted, partial, failed
	)

	EpisodesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "radiorec_episodes_created_total",
			Help: "Podcast episodes created from finished captures",
		},
	)

	// Gauges
	ActiveCaptures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radiorec_active_captures",
			Help: "Captures currently running",
		},
	)

	ArmedTimers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "radiorec_armed_timers",
			Help: "Start/stop timers currently armed in the coordinator",
		},
	)
)
