// Package metrics provides Prometheus collectors for the atom engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks atom execution metrics.
//
// Metrics:
//   - atlas_engine_executions_total: executions by tenant, atom type, outcome
//   - atlas_engine_execution_duration_seconds: execution duration by atom type
//   - atlas_engine_cache_hits_total / cache_misses_total: result cache traffic
//   - atlas_engine_pool_caller_runs_total: tasks run on the caller due to saturation
//   - atlas_engine_stats_dropped_total: statistics samples dropped under load
type EngineMetrics struct {
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	poolCallerRuns    prometheus.Counter
	statsDropped      prometheus.Counter
}

// NewEngineMetrics creates and registers engine metrics with the provided
// registry. If registry is nil, the default Prometheus registry is used.
func NewEngineMetrics(namespace string, registry *prometheus.Registry) *EngineMetrics {
	if namespace == "" {
		namespace = "atlas"
	}

	em := &EngineMetrics{
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "executions_total",
				Help:      "Total number of atom executions",
			},
			[]string{"tenant_id", "atom_type", "outcome"},
		),

		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "execution_duration_seconds",
				Help:      "Duration of atom executions in seconds",
				// Evaluations span microseconds (cached simple atoms) to
				// seconds (deep composites near the timeout bound).
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
			[]string{"atom_type"},
		),

		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cache_hits_total",
			Help:      "Total number of execution result cache hits",
		}),

		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cache_misses_total",
			Help:      "Total number of execution result cache misses",
		}),

		poolCallerRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pool_caller_runs_total",
			Help:      "Tasks executed on the submitting goroutine due to pool saturation",
		}),

		statsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "stats_dropped_total",
			Help:      "Statistics samples dropped because the update buffer was full",
		}),
	}

	if registry != nil {
		registry.MustRegister(
			em.executionsTotal,
			em.executionDuration,
			em.cacheHits,
			em.cacheMisses,
			em.poolCallerRuns,
			em.statsDropped,
		)
	} else {
		prometheus.MustRegister(
			em.executionsTotal,
			em.executionDuration,
			em.cacheHits,
			em.cacheMisses,
			em.poolCallerRuns,
			em.statsDropped,
		)
	}

	return em
}

// RecordExecution records one atom execution.
func (em *EngineMetrics) RecordExecution(tenantID, atomType, outcome string, duration time.Duration) {
	if em == nil {
		return
	}
	em.executionsTotal.WithLabelValues(tenantID, atomType, outcome).Inc()
	em.executionDuration.WithLabelValues(atomType).Observe(duration.Seconds())
}

// RecordCacheHit records a result cache hit.
func (em *EngineMetrics) RecordCacheHit() {
	if em == nil {
		return
	}
	em.cacheHits.Inc()
}

// RecordCacheMiss records a result cache miss.
func (em *EngineMetrics) RecordCacheMiss() {
	if em == nil {
		return
	}
	em.cacheMisses.Inc()
}

// RecordCallerRun records a pool task executed on the caller's goroutine.
func (em *EngineMetrics) RecordCallerRun() {
	if em == nil {
		return
	}
	em.poolCallerRuns.Inc()
}

// RecordStatsDropped records a dropped statistics sample.
func (em *EngineMetrics) RecordStatsDropped() {
	if em == nil {
		return
	}
	em.statsDropped.Inc()
}
