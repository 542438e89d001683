// ============================================================================
// Breakwater Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose runner metrics for Prometheus monitoring
//
// Metric Categories:
//
//   1. Task Counters - Cumulative, monotonically increasing:
//      - breakwater_tasks_submitted_total: Total submitted tasks
//      - breakwater_tasks_succeeded_total: Total successful tasks
//      - breakwater_tasks_failed_total: Total failed tasks
//      - breakwater_tasks_cancelled_total: Total cancelled tasks
//      - breakwater_tasks_timeout_total: Total timed-out tasks
//      - breakwater_fallbacks_total{outcome}: Fallback attempts by outcome
//
//   2. Performance Metrics (Histogram):
//      - breakwater_task_duration_seconds: Run duration distribution
//
//   3. Pool Metrics (Gauge, labelled by pool):
//      - breakwater_pool_queue_depth: Tasks waiting in the pool queue
//      - breakwater_pool_workers_alive: Live workers
//      - breakwater_pool_tasks_running: Tasks currently executing
//
// HTTP Endpoint:
//   Exposed via /metrics, Prometheus text format.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects Prometheus metrics for tasks and pools.
type Collector struct {
	tasksSubmitted prometheus.Counter
	tasksSucceeded prometheus.Counter
	tasksFailed    prometheus.Counter
	tasksCancelled prometheus.Counter
	tasksTimeout   prometheus.Counter
	fallbacks      *prometheus.CounterVec

	taskDuration prometheus.Histogram

	poolQueueDepth   *prometheus.GaugeVec
	poolWorkersAlive *prometheus.GaugeVec
	poolTasksRunning *prometheus.GaugeVec
}

// NewCollector creates a metrics collector registered on the default
// Prometheus registerer.
func NewCollector() *Collector {
	c := &Collector{
		tasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakwater_tasks_submitted_total",
			Help: "Total number of tasks submitted",
		}),
		tasksSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakwater_tasks_succeeded_total",
			Help: "Total number of tasks completed successfully",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakwater_tasks_failed_total",
			Help: "Total number of tasks that failed",
		}),
		tasksCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakwater_tasks_cancelled_total",
			Help: "Total number of tasks cancelled before completion",
		}),
		tasksTimeout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakwater_tasks_timeout_total",
			Help: "Total number of tasks cancelled by timeout",
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breakwater_fallbacks_total",
			Help: "Total number of fallback attempts by outcome",
		}, []string{"outcome"}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breakwater_task_duration_seconds",
			Help:    "Task run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		poolQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "breakwater_pool_queue_depth",
			Help: "Current number of tasks waiting in the pool queue",
		}, []string{"pool"}),
		poolWorkersAlive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "breakwater_pool_workers_alive",
			Help: "Current number of live pool workers",
		}, []string{"pool"}),
		poolTasksRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "breakwater_pool_tasks_running",
			Help: "Current number of tasks executing",
		}, []string{"pool"}),
	}

	prometheus.MustRegister(c.tasksSubmitted)
	prometheus.MustRegister(c.tasksSucceeded)
	prometheus.MustRegister(c.tasksFailed)
	prometheus.MustRegister(c.tasksCancelled)
	prometheus.MustRegister(c.tasksTimeout)
	prometheus.MustRegister(c.fallbacks)
	prometheus.MustRegister(c.taskDuration)
	prometheus.MustRegister(c.poolQueueDepth)
	prometheus.MustRegister(c.poolWorkersAlive)
	prometheus.MustRegister(c.poolTasksRunning)

	return c
}

var (
	defaultOnce      sync.Once
	defaultCollector *Collector
)

// Default returns the process-wide collector, creating and registering it on
// first use.
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = NewCollector()
	})
	return defaultCollector
}

// RecordSubmitted records a task submission.
func (c *Collector) RecordSubmitted() {
	c.tasksSubmitted.Inc()
}

// RecordSucceeded records a successful task run with its duration.
func (c *Collector) RecordSucceeded(durationSeconds float64) {
	c.tasksSucceeded.Inc()
	c.taskDuration.Observe(durationSeconds)
}

// RecordFailed records a failed task run with its duration.
func (c *Collector) RecordFailed(durationSeconds float64) {
	c.tasksFailed.Inc()
	c.taskDuration.Observe(durationSeconds)
}

// RecordCancelled records a cancelled task. timeout marks cancellations
// caused by a deadline.
func (c *Collector) RecordCancelled(timeout bool) {
	c.tasksCancelled.Inc()
	if timeout {
		c.tasksTimeout.Inc()
	}
}

// RecordFallback records a fallback attempt outcome.
func (c *Collector) RecordFallback(succeeded bool) {
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	c.fallbacks.WithLabelValues(outcome).Inc()
}

// SetQueueDepth updates the queue depth gauge for a pool.
func (c *Collector) SetQueueDepth(pool string, depth int) {
	c.poolQueueDepth.WithLabelValues(pool).Set(float64(depth))
}

// SetWorkersAlive updates the live worker gauge for a pool.
func (c *Collector) SetWorkersAlive(pool string, workers int) {
	c.poolWorkersAlive.WithLabelValues(pool).Set(float64(workers))
}

// SetTasksRunning updates the running task gauge for a pool.
func (c *Collector) SetTasksRunning(pool string, running int) {
	c.poolTasksRunning.WithLabelValues(pool).Set(float64(running))
}

// StartServer starts the Prometheus metrics HTTP server.
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}
