// Package metrics exposes the Prometheus collectors for indexing activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notegraph"

var (
	// IndexDuration measures a worker's full-index pass.
	IndexDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "index_duration_seconds",
		Help:      "Duration of full-index passes in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// FilesIndexed counts files by full-index outcome.
	// Labels: outcome (indexed, skipped)
	FilesIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "files_total",
		Help:      "Files processed by full-index passes",
	}, []string{"outcome"})

	// IncrementalUpdates counts delta operations applied by the session.
	// Labels: op (graph, tasks, prediction, remove)
	IncrementalUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "incremental_updates_total",
		Help:      "Incremental updates applied by operation",
	}, []string{"op"})

	SnapshotRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "snapshot_rebuilds_total",
		Help:      "Prediction snapshot rebuilds",
	})

	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "persist_failures_total",
		Help:      "Failed graph cache writes",
	})

	// StaleMessages counts worker responses dropped because their worker was
	// already discarded.
	StaleMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "stale_worker_messages_total",
		Help:      "Worker responses ignored after the worker was replaced",
	})

	// EventClients tracks connected event-stream subscribers.
	EventClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sse",
		Name:      "clients",
		Help:      "Connected event-stream clients",
	})

	// EventsDropped counts notifications that never reached a client.
	// Labels: reason (queue_full, slow_client)
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sse",
		Name:      "events_dropped_total",
		Help:      "Notifications dropped before delivery",
	}, []string{"reason"})
)

// Reason label values for EventsDropped.
const (
	ReasonQueueFull  = "queue_full"
	ReasonSlowClient = "slow_client"
)

// Outcome label values for FilesIndexed.
const (
	OutcomeIndexed = "indexed"
	OutcomeSkipped = "skipped"
)

// Op label values for IncrementalUpdates.
const (
	OpGraph      = "graph"
	OpTasks      = "tasks"
	OpPrediction = "prediction"
	OpRemove     = "remove"
)
