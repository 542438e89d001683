// ============================================================================
// Breakwater Worker Pool - Bounded Task Executor
// ============================================================================
//
// Package: pool
// File: pool.go
// Purpose: Bounded FIFO queue plus an elastic worker set executing tasks
//
// Design:
//   Each pool owns a bounded queue of tasks and grows workers on demand up
//   to a cap. Workers that find the queue empty wait for a wake signal with
//   an idle timeout and exit when nothing arrives, so an idle pool shrinks
//   back to zero goroutines. Pools are process-wide singletons keyed by
//   name.
//
// Concurrency Control:
//   - mu guards the queue, the worker count and the shutdown flag
//   - wake is a buffered channel signalling one waiting worker per enqueue
//   - stopCh is closed on shutdown and wakes every waiter at once
//   - WaitGroup tracks workers so Shutdown(block) can join them
//
// Ordering:
//   FIFO within a single pool. No cross-pool ordering.
//
// Graceful Shutdown:
//   Shutdown() process:
//   1. Set the shutdown flag, reject further enqueues
//   2. Close stopCh, wake every idle worker
//   3. Workers finish their current task and exit
//   4. Optionally wait for all workers to exit
//
// ============================================================================

// Package pool implements named, bounded worker pools with elastic worker
// sets and idle-worker reaping.
package pool

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/ChuLiYu/breakwater/histogram"
	"github.com/ChuLiYu/breakwater/internal/metrics"
)

var (
	// ErrPoolClosed indicates that the pool is shut down and cannot accept
	// new tasks.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrQueueFull indicates that the pool queue is at capacity.
	ErrQueueFull = errors.New("pool queue is full")
)

// Default pool limits, applied by New.
const (
	DefaultMaxQueueSize  = 10
	DefaultMaxPoolSize   = 10
	DefaultMaxWorkerIdle = 60 * time.Second
)

// Throughput window covered by the per-pool completion counter.
const (
	throughputWindow  = 10 * time.Second
	throughputBuckets = 10
)

// Task is a unit of work executable by a pool worker.
type Task interface {
	// Exec runs the task. Implementations record their own outcome; a
	// panic escaping Exec is suppressed by the worker.
	Exec()
}

// Pool is a named, bounded work queue plus an elastic set of workers.
type Pool struct {
	name string

	// Limits are fixed after the pool is first used.
	MaxQueueSize  int
	MaxPoolSize   int
	MaxWorkerIdle time.Duration

	mu       sync.Mutex
	queue    []Task
	workers  int
	shutdown bool

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	running    atomic.Int64
	throughput *histogram.Counter

	logger *slog.Logger
}

// Process-wide pool registry, keyed by name.
var (
	registryMu sync.Mutex
	registry   = make(map[string]*Pool)
)

// New returns the pool with the given name, creating it with default limits
// on first use. Pools are singletons: constructing an existing name returns
// the existing instance.
func New(name string) *Pool {
	registryMu.Lock()
	defer registryMu.Unlock()

	if p, ok := registry[name]; ok {
		return p
	}
	p := &Pool{
		name:          name,
		MaxQueueSize:  DefaultMaxQueueSize,
		MaxPoolSize:   DefaultMaxPoolSize,
		MaxWorkerIdle: DefaultMaxWorkerIdle,
		// The wake buffer need not track a raised MaxPoolSize: a skipped
		// signal only matters to a worker already waiting, and every
		// worker rechecks the queue head unconditionally after finishing
		// a task, so queued work is never stranded.
		wake: make(chan struct{}, DefaultMaxPoolSize),
		stopCh:        make(chan struct{}),
		throughput:    histogram.New(throughputWindow, throughputBuckets),
		logger:        slog.With("component", "pool", "pool", name),
	}
	registry[name] = p
	return p
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Enqueue appends a task to the queue and makes sure a worker will pick it
// up, growing the worker set if below the cap.
func (p *Pool) Enqueue(task Task) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if len(p.queue) >= p.MaxQueueSize {
		p.mu.Unlock()
		return ErrQueueFull
	}
	p.queue = append(p.queue, task)
	depth := len(p.queue)
	if p.workers < p.MaxPoolSize {
		p.workers++
		p.wg.Add(1)
		go p.workerLoop()
		metrics.Default().SetWorkersAlive(p.name, p.workers)
	}
	p.mu.Unlock()

	metrics.Default().SetQueueDepth(p.name, depth)

	// Signal one waiting worker. The buffer holds DefaultMaxPoolSize
	// signals (see New), so a skipped signal means that many wake-ups are
	// already pending.
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue removes a task from the queue if it is still waiting. Used by
// cancellation; removing a task that is running or already gone is a no-op.
func (p *Pool) Dequeue(task Task) {
	p.mu.Lock()
	for i, queued := range p.queue {
		if queued == task {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			break
		}
	}
	depth := len(p.queue)
	p.mu.Unlock()
	metrics.Default().SetQueueDepth(p.name, depth)
}

// workerLoop is one worker's life: pop and execute tasks until the pool
// shuts down or the idle timeout expires with an empty queue.
func (p *Pool) workerLoop() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		if p.shutdown {
			p.removeWorkerLocked()
			p.mu.Unlock()
			return
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			select {
			case <-p.wake:
			case <-p.stopCh:
			case <-time.After(p.MaxWorkerIdle):
			}
			p.mu.Lock()
			if p.shutdown || len(p.queue) == 0 {
				p.removeWorkerLocked()
				p.mu.Unlock()
				return
			}
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		depth := len(p.queue)
		p.mu.Unlock()

		metrics.Default().SetQueueDepth(p.name, depth)
		p.execute(task)
	}
}

// removeWorkerLocked removes the calling worker from the worker set.
// Caller must hold mu.
func (p *Pool) removeWorkerLocked() {
	p.workers--
	metrics.Default().SetWorkersAlive(p.name, p.workers)
}

// execute runs one task, tracking the running count and suppressing any
// panic that escapes the task. Tasks record their own outcome.
func (p *Pool) execute(task Task) {
	running := p.running.Inc()
	metrics.Default().SetTasksRunning(p.name, int(running))
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panic suppressed by pool", "panic", r)
		}
		running := p.running.Dec()
		metrics.Default().SetTasksRunning(p.name, int(running))
		p.throughput.Increment(1)
	}()
	task.Exec()
}

// Shutdown closes the pool. No further tasks are accepted; idle workers
// wake up and exit. When block is true, Shutdown waits for every worker,
// including those finishing a task, to exit.
func (p *Pool) Shutdown(block bool) {
	p.mu.Lock()
	if !p.shutdown {
		p.shutdown = true
		close(p.stopCh)
	}
	p.mu.Unlock()

	if block {
		p.wg.Wait()
	}
}

// QueueSize returns the number of tasks waiting in the queue.
func (p *Pool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// QueueSpace returns the number of free slots in the queue.
func (p *Pool) QueueSpace() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.MaxQueueSize - len(p.queue)
}

// WorkerCount returns the current number of live workers.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// RunningCount returns the number of tasks currently executing.
func (p *Pool) RunningCount() int {
	return int(p.running.Load())
}

// Throughput returns a frozen snapshot of the pool's completion counter.
func (p *Pool) Throughput() *histogram.Counter {
	return p.throughput.Freeze()
}

// ShutdownAll shuts down every registered pool. Invoked by the runtime
// handle on process shutdown.
func ShutdownAll(block bool) {
	registryMu.Lock()
	pools := make([]*Pool, 0, len(registry))
	for _, p := range registry {
		pools = append(pools, p)
	}
	registryMu.Unlock()

	for _, p := range pools {
		p.Shutdown(block)
	}
}

// ResetAll shuts down and forgets every registered pool. Test helper.
func ResetAll() {
	registryMu.Lock()
	pools := registry
	registry = make(map[string]*Pool)
	registryMu.Unlock()

	for _, p := range pools {
		p.Shutdown(false)
	}
}
