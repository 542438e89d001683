// ============================================================================
// Breakwater Histogram - Rolling-Window Bucket Counter
// ============================================================================
//
// Package: histogram
// File: histogram.go
// Purpose: Rolling-window event rate tracking with bounded memory
//
// Design:
//   A fixed number of buckets B covers a time window W. Increments land in
//   the current bucket until its deadline passes; crossing the deadline
//   rotates the current value into a ring of past buckets (dropping the
//   oldest) and resets the current bucket. Advancing over several intervals
//   pads the ring with zero buckets, capped at B-1 so a long idle period
//   never dominates the rotation loop.
//
// Concurrency:
//   The hot path (increment within the current bucket) is a single atomic
//   add. The mutex is taken only when the bucket boundary is crossed, so
//   steady load costs near-constant time.
//
// ============================================================================

// Package histogram implements a rolling-window bucket counter used for
// throughput and latency telemetry.
package histogram

import (
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Counter counts events over a rolling time window split into buckets.
type Counter struct {
	window   time.Duration // total window W
	interval time.Duration // per-bucket interval W/B
	size     int           // bucket count B

	current  atomic.Int64 // value of the current bucket
	deadline atomic.Int64 // current bucket deadline (unix nanos)

	mu   sync.Mutex
	past []int64 // ring of past bucket values, oldest first, len <= size
}

// New creates a counter covering window w with b buckets.
// Values below the minimum (1 bucket, 1ms window) are clamped.
func New(w time.Duration, b int) *Counter {
	if b < 1 {
		b = 1
	}
	if w < time.Millisecond {
		w = time.Millisecond
	}
	c := &Counter{
		window:   w,
		interval: w / time.Duration(b),
		size:     b,
		past:     make([]int64, 0, b),
	}
	c.deadline.Store(time.Now().Add(c.interval).UnixNano())
	return c
}

// Increment adds n to the current bucket, rotating stale buckets first if
// the current bucket deadline has passed.
func (c *Counter) Increment(n int64) {
	now := time.Now().UnixNano()
	if now < c.deadline.Load() {
		c.current.Add(n)
		return
	}

	c.mu.Lock()
	// Another writer may have rotated while we waited for the lock.
	if now < c.deadline.Load() {
		c.mu.Unlock()
		c.current.Add(n)
		return
	}
	c.rotateLocked(now)
	c.current.Add(n)
	c.mu.Unlock()
}

// rotateLocked pushes the current bucket into the ring and advances the
// deadline past now, padding skipped intervals with zero buckets.
// Caller must hold mu.
func (c *Counter) rotateLocked(now int64) {
	deadline := c.deadline.Load()
	elapsed := now - deadline
	steps := 1 + elapsed/int64(c.interval)

	c.pushLocked(c.current.Swap(0))

	// Pad skipped intervals with empty buckets, at most B-1 of them: with
	// the bucket just pushed that refills the whole ring of B past buckets
	// and bounds the loop after a long idle period. The pushed bucket stays
	// in the ring however many intervals were skipped.
	pad := steps - 1
	if pad > int64(c.size-1) {
		pad = int64(c.size - 1)
	}
	for i := int64(0); i < pad; i++ {
		c.pushLocked(0)
	}

	c.deadline.Store(deadline + steps*int64(c.interval))
}

// pushLocked appends v to the ring, dropping the oldest bucket when full.
// Caller must hold mu.
func (c *Counter) pushLocked(v int64) {
	if len(c.past) == c.size {
		copy(c.past, c.past[1:])
		c.past = c.past[:len(c.past)-1]
	}
	c.past = append(c.past, v)
}

// Sync advances the window without altering counts.
func (c *Counter) Sync() {
	c.Increment(0)
}

// Freeze returns a synced deep copy that is safe to read while writers
// continue to update the original.
func (c *Counter) Freeze() *Counter {
	c.Sync()
	c.mu.Lock()
	defer c.mu.Unlock()

	frozen := &Counter{
		window:   c.window,
		interval: c.interval,
		size:     c.size,
		past:     append(make([]int64, 0, c.size), c.past...),
	}
	frozen.current.Store(c.current.Load())
	frozen.deadline.Store(c.deadline.Load())
	return frozen
}

// buckets returns a snapshot of all bucket values, oldest first, the
// current bucket last.
func (c *Counter) buckets() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	vals := append(make([]int64, 0, len(c.past)+1), c.past...)
	return append(vals, c.current.Load())
}

// Sum returns the total amount counted over the current window.
func (c *Counter) Sum() int64 {
	var sum int64
	for _, v := range c.buckets() {
		sum += v
	}
	return sum
}

// Rate returns the average event rate per second over the window.
func (c *Counter) Rate() float64 {
	return float64(c.Sum()) / c.window.Seconds()
}

// RateMin returns the lowest per-second rate seen in any bucket.
func (c *Counter) RateMin() float64 {
	vals := c.buckets()
	minVal := vals[0]
	for _, v := range vals[1:] {
		if v < minVal {
			minVal = v
		}
	}
	return float64(minVal) * c.scale()
}

// RateMax returns the highest per-second rate seen in any bucket.
func (c *Counter) RateMax() float64 {
	vals := c.buckets()
	maxVal := vals[0]
	for _, v := range vals[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	return float64(maxVal) * c.scale()
}

// scale converts a bucket value to a per-second rate.
func (c *Counter) scale() float64 {
	return float64(c.size) / c.window.Seconds()
}

// Stdev returns the standard deviation of the bucket values.
func (c *Counter) Stdev() float64 {
	vals := c.buckets()
	if len(vals) < 2 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += float64(v)
	}
	mean /= float64(len(vals))

	var variance float64
	for _, v := range vals {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(vals))
	return math.Sqrt(variance)
}

// Median returns the q-quantile over the bucket values (q in [0, 1],
// default use is 0.5) with linear interpolation between adjacent buckets.
func (c *Counter) Median(q float64) float64 {
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	vals := c.buckets()
	sorted := make([]float64, len(vals))
	for i, v := range vals {
		sorted[i] = float64(v)
	}
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Window returns the configured window length.
func (c *Counter) Window() time.Duration {
	return c.window
}

// Buckets returns the configured bucket count.
func (c *Counter) Buckets() int {
	return c.size
}
