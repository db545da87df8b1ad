package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesDeleted counts terminal deletions by reason
	MessagesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_deleted_total",
			Help: "Total number of messages deleted, by deletion reason",
		},
		[]string{"reason"},
	)

	// MediaDeleteFailures counts swallowed media-blob deletion errors.
	// These never fail the message deletion, so the counter is the only
	// visibility into leaked blobs.
	MediaDeleteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_delete_failures_total",
			Help: "Total number of media blob deletions that failed and were swallowed",
		},
	)

	// SweepCycles counts completed expiry sweep cycles
	SweepCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expiry_sweep_cycles_total",
			Help: "Total number of expiry sweep cycles run",
		},
	)

	// SweepItemErrors counts per-message failures inside a sweep cycle
	SweepItemErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "expiry_sweep_item_errors_total",
			Help: "Total number of per-message errors during expiry sweeps",
		},
	)

	// DeletionJobsScheduled counts grace-delay deletion jobs queued
	DeletionJobsScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deletion_jobs_scheduled_total",
			Help: "Total number of grace-delay deletion jobs scheduled after full delivery",
		},
	)
)
