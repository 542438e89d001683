package histogram

// ============================================================================
// Histogram Counter Test File
// Purpose: Verify windowed counting, freezing and the derived statistics
// ============================================================================

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClampsLimits(t *testing.T) {
	c := New(0, 0)
	assert.Equal(t, 1, c.Buckets())
	assert.Equal(t, time.Millisecond, c.Window())
}

func TestSumCountsIncrements(t *testing.T) {
	c := New(time.Second, 10)

	c.Increment(1)
	c.Increment(4)
	c.Increment(5)

	assert.Equal(t, int64(10), c.Sum(), "sum should equal the total incremented amount")
	assert.InDelta(t, 10.0, c.Rate(), 0.001, "rate is sum over the window")
}

func TestSyncDoesNotAlterCounts(t *testing.T) {
	c := New(time.Second, 10)
	c.Increment(7)
	c.Sync()
	assert.Equal(t, int64(7), c.Sum())
}

func TestExpiryDropsOldBuckets(t *testing.T) {
	// 5 buckets of 20ms each.
	c := New(100*time.Millisecond, 5)
	c.Increment(10)
	require.Equal(t, int64(10), c.Sum())

	// Each sleep crosses at least one bucket boundary; after enough
	// rotations the old value has been pushed out of the ring.
	for i := 0; i < 12; i++ {
		time.Sleep(21 * time.Millisecond)
		c.Sync()
	}
	assert.Equal(t, int64(0), c.Sum(), "counts older than the window should expire")
}

func TestRotationKeepsTotalWithinWindow(t *testing.T) {
	c := New(time.Second, 10)
	c.Increment(3)
	time.Sleep(110 * time.Millisecond) // cross at least one bucket boundary
	c.Increment(7)

	assert.Equal(t, int64(10), c.Sum())
	assert.InDelta(t, 70.0, c.RateMax(), 0.001, "max bucket holds 7 events, scaled by B/W")
	assert.LessOrEqual(t, c.RateMin(), 30.0)
}

func TestFreezeIsolatesReaders(t *testing.T) {
	c := New(time.Second, 10)
	c.Increment(5)

	frozen := c.Freeze()
	c.Increment(100)

	assert.Equal(t, int64(5), frozen.Sum(), "frozen copy must not see later writes")
	assert.Equal(t, int64(105), c.Sum())

	// Repeated reads of the frozen copy agree.
	assert.Equal(t, frozen.Sum(), frozen.Sum())
	assert.Equal(t, frozen.Median(0.5), frozen.Median(0.5))
}

func TestStatisticsSingleBucket(t *testing.T) {
	c := New(time.Second, 10)
	c.Increment(4)

	assert.InDelta(t, 4.0, c.Median(0.5), 0.001)
	assert.InDelta(t, 0.0, c.Stdev(), 0.001, "a single bucket has no spread")
	assert.InDelta(t, 40.0, c.RateMax(), 0.001)
	assert.InDelta(t, 40.0, c.RateMin(), 0.001)
}

func TestMedianInterpolates(t *testing.T) {
	c := New(time.Second, 4)
	c.mu.Lock()
	c.past = []int64{1, 3}
	c.mu.Unlock()
	c.current.Store(2)

	// Sorted bucket values are [1, 2, 3].
	assert.InDelta(t, 2.0, c.Median(0.5), 0.001)
	assert.InDelta(t, 1.5, c.Median(0.25), 0.001)
	assert.InDelta(t, 3.0, c.Median(1), 0.001)
	assert.InDelta(t, 1.0, c.Median(0), 0.001)
}

func TestMedianClampsQuantile(t *testing.T) {
	c := New(time.Second, 4)
	c.Increment(9)
	assert.InDelta(t, 9.0, c.Median(-1), 0.001)
	assert.InDelta(t, 9.0, c.Median(2), 0.001)
}

func TestConcurrentIncrements(t *testing.T) {
	c := New(time.Minute, 6) // long window: nothing expires during the test

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Increment(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8000), c.Sum(), "no increments may be lost")
}
