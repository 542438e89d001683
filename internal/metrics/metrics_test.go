package metrics

// ============================================================================
// Metrics Collector Test File
// Purpose: Verify collector construction and the Record/Set helpers
// ============================================================================

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNewCollector(t *testing.T) {
	// Reset Prometheus registry to avoid duplicate registration
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewCollector()

	assert.NotNil(t, collector, "NewCollector should return a non-nil collector")
	assert.NotNil(t, collector.tasksSubmitted, "tasksSubmitted counter should be initialized")
	assert.NotNil(t, collector.tasksSucceeded, "tasksSucceeded counter should be initialized")
	assert.NotNil(t, collector.tasksFailed, "tasksFailed counter should be initialized")
	assert.NotNil(t, collector.tasksCancelled, "tasksCancelled counter should be initialized")
	assert.NotNil(t, collector.tasksTimeout, "tasksTimeout counter should be initialized")
	assert.NotNil(t, collector.fallbacks, "fallbacks counter vec should be initialized")
	assert.NotNil(t, collector.taskDuration, "taskDuration histogram should be initialized")
	assert.NotNil(t, collector.poolQueueDepth, "poolQueueDepth gauge vec should be initialized")
	assert.NotNil(t, collector.poolWorkersAlive, "poolWorkersAlive gauge vec should be initialized")
	assert.NotNil(t, collector.poolTasksRunning, "poolTasksRunning gauge vec should be initialized")
}

func TestNewCollectorDuplicateRegistrationPanics(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	NewCollector()

	assert.Panics(t, func() {
		NewCollector()
	}, "registering the same metrics twice must panic")
}

func TestDefaultIsSingleton(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	first := Default()
	second := Default()
	assert.Same(t, first, second, "Default should always return the same collector")
}

func TestRecordSubmitted(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordSubmitted()
	}, "RecordSubmitted should not panic")

	for i := 0; i < 5; i++ {
		collector.RecordSubmitted()
	}
}

func TestRecordSucceeded(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordSucceeded(0.05)
	}, "RecordSucceeded should not panic")

	// Durations across several histogram buckets should work normally
	for _, d := range []float64{0.001, 0.01, 0.1, 1, 10} {
		collector.RecordSucceeded(d)
	}
}

func TestRecordFailed(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordFailed(0.05)
	}, "RecordFailed should not panic")

	for i := 0; i < 10; i++ {
		collector.RecordFailed(0.2)
	}
}

func TestRecordCancelled(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordCancelled(false)
	}, "RecordCancelled should not panic")

	assert.NotPanics(t, func() {
		collector.RecordCancelled(true)
	}, "RecordCancelled with timeout should not panic")
}

func TestRecordFallback(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordFallback(true)
	}, "RecordFallback(succeeded) should not panic")

	assert.NotPanics(t, func() {
		collector.RecordFallback(false)
	}, "RecordFallback(failed) should not panic")
}

func TestSetQueueDepth(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.SetQueueDepth("default", 3)
	}, "SetQueueDepth should not panic")

	// Gauges move both ways and track several pools independently
	collector.SetQueueDepth("default", 0)
	collector.SetQueueDepth("slow", 7)
}

func TestSetWorkersAlive(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.SetWorkersAlive("default", 4)
	}, "SetWorkersAlive should not panic")

	collector.SetWorkersAlive("default", 0)
}

func TestSetTasksRunning(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.SetTasksRunning("default", 2)
	}, "SetTasksRunning should not panic")

	collector.SetTasksRunning("default", 0)
}
