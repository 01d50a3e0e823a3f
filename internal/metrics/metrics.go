// Package metrics exposes Prometheus metrics for the pomodoro service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCompletedTotal counts completed sessions by mode.
	SessionsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "focusify_sessions_completed_total",
		Help: "Total number of completed sessions, by mode.",
	}, []string{"mode"})

	// CyclesCompletedTotal counts focus sessions that closed a cycle.
	CyclesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "focusify_cycles_completed_total",
		Help: "Total number of completed pomodoro cycles.",
	})

	// TimersLoaded is the number of per-user timers held in memory.
	TimersLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "focusify_timers_loaded",
		Help: "Number of per-user timers currently loaded.",
	})

	// RestoreRepairsTotal counts fields corrected while restoring snapshots.
	RestoreRepairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "focusify_restore_repairs_total",
		Help: "Total number of snapshot fields repaired on restore.",
	})

	// PersistFailuresTotal counts snapshot or history writes that failed.
	PersistFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "focusify_persist_failures_total",
		Help: "Total number of failed persistence writes, by target.",
	}, []string{"target"})
)
