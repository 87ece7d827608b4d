// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics declares the Prometheus instruments the ingestion
backbone exports from its worker-fleet health server.

Everything is registered on a dedicated registry (never the global
default) so a test binary embedding two fleets never collides on
duplicate registration.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var JobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "yomira",
		Subsystem: "worker",
		Name:      "jobs_processed_total",
		Help:      "Total jobs processed, by kind and outcome (ok, retried, dropped, dead).",
	},
	[]string{"kind", "outcome"},
)

var JobDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "yomira",
		Subsystem: "worker",
		Name:      "job_duration_seconds",
		Help:      "Job processing duration in seconds, by kind.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"kind"},
)

var QueueWaitingDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "yomira",
		Subsystem: "queue",
		Name:      "waiting_depth",
		Help:      "Jobs currently waiting, by queue.",
	},
	[]string{"queue"},
)

var CircuitBreakerTripsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "yomira",
		Subsystem: "scraper",
		Name:      "circuit_trips_total",
		Help:      "Total circuit breaker open transitions, by source.",
	},
	[]string{"source"},
)

var RateLimitWaitDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "yomira",
		Subsystem: "ratelimit",
		Name:      "wait_duration_seconds",
		Help:      "Time spent waiting for a source token, by source.",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"source"},
)

var SearchDispatchTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "yomira",
		Subsystem: "search",
		Name:      "dispatch_total",
		Help:      "Search dispatcher outcomes (cache_hit, coalesced, local_only, external_enqueued, deferred, dropped).",
	},
	[]string{"outcome"},
)

var NotificationsDeliveredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "yomira",
		Subsystem: "notify",
		Name:      "delivered_total",
		Help:      "Total chapter notifications inserted.",
	},
)

var SchedulerTicksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "yomira",
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Master scheduler tick outcomes (ok, lock_lost, error).",
	},
	[]string{"outcome"},
)

var SyncEnqueuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "yomira",
		Subsystem: "scheduler",
		Name:      "sync_enqueued_total",
		Help:      "Sources enqueued for sync, by priority tier.",
	},
	[]string{"priority"},
)

// All returns every backbone metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		JobsProcessedTotal,
		JobDuration,
		QueueWaitingDepth,
		CircuitBreakerTripsTotal,
		RateLimitWaitDuration,
		SearchDispatchTotal,
		NotificationsDeliveredTotal,
		SchedulerTicksTotal,
		SyncEnqueuedTotal,
	}
}

// NewRegistry builds a registry with every backbone metric plus the
// standard process/Go collectors already registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(All()...)
	return reg
}
