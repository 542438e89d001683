// ============================================================================
// Breakwater Task - Command Lifecycle State Machine
// ============================================================================
//
// Package: command
// File: task.go
// Purpose: A single execution attempt of a command, with result, fallback,
// timeout, cancellation and cleanup semantics
//
// State Machine:
//
//	     Submit            worker picks
//	NEW ────────► PENDING ──────────────► RUNNING ──► SUCCEEDED
//	 │               │                       │
//	 │ Cancel        │ Cancel                │ Cancel (run outcome
//	 ▼               ▼                       ▼  is discarded)
//	FAILED         FAILED                  FAILED
//
// The canceled flag is orthogonal to the state: a canceled task is also
// FAILED. Terminal states are SUCCEEDED and FAILED.
//
// Concurrency:
//   - mu guards state, results and the fallback bookkeeping
//   - done is closed exactly once, when the task enters a terminal state;
//     closing is a happens-before barrier for every write made before it
//   - mu is a leaf lock towards the pool: Cancel releases mu before calling
//     Dequeue, and Submit releases mu before calling Enqueue
//
// Guarantees:
//   - Cleanup runs at most once, on the worker that picked the task
//   - Fallback runs at most once, on the first waiter after failure; its
//     outcome is cached for later waiters
//
// ============================================================================

package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ChuLiYu/breakwater/eventbus"
	"github.com/ChuLiYu/breakwater/internal/metrics"
	"github.com/ChuLiYu/breakwater/pkg/types"
	"github.com/ChuLiYu/breakwater/pool"
)

// Task is a single execution attempt of a command with captured arguments.
type Task[A, R any] struct {
	def  *Definition[A, R]
	args A
	id   string

	// runCtx is canceled when the task is canceled, so Run implementations
	// can exit early at safe points.
	runCtx    context.Context
	runCancel context.CancelFunc

	mu       sync.Mutex
	state    types.TaskState
	canceled bool
	result   R
	err      error

	fbState  types.TaskState
	fbResult R
	fbErr    error

	done chan struct{} // closed on terminal state, exactly once
	pl   *pool.Pool    // bound at first Submit

	logger *slog.Logger
}

// New creates a task for the command with the given arguments. The
// arguments are captured now and immutable thereafter.
func (d *Definition[A, R]) New(args A) *Task[A, R] {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Task[A, R]{
		def:       d,
		args:      args,
		id:        id,
		runCtx:    ctx,
		runCancel: cancel,
		state:     types.StateNew,
		fbState:   types.StateNew,
		done:      make(chan struct{}),
		logger:    d.logger.With("task", id),
	}
}

// ID returns the task instance id.
func (t *Task[A, R]) ID() string {
	return t.id
}

// State returns the current task state.
func (t *Task[A, R]) State() types.TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Submit queues the task for execution. Submitting a task more than once
// has no effect. The task itself is returned to allow chained calls.
//
// A submission failure (unknown pool, closed pool, full queue) fails the
// task: the error is recorded and surfaces from Result and Err.
func (t *Task[A, R]) Submit() *Task[A, R] {
	t.mu.Lock()
	if t.state != types.StateNew {
		t.mu.Unlock()
		return t
	}
	t.state = types.StatePending
	t.mu.Unlock()

	metrics.Default().RecordSubmitted()
	t.emit("task.submitted")

	p, err := t.def.group.GetExecutor(t.def.poolName)
	if err == nil {
		t.mu.Lock()
		t.pl = p
		t.mu.Unlock()
		err = p.Enqueue(t)
	}
	if err != nil {
		t.mu.Lock()
		if t.state == types.StatePending {
			t.state = types.StateFailed
			t.err = err
			close(t.done)
		}
		t.mu.Unlock()
		t.logger.Error("task submission rejected", "error", err)
		t.emit("task.failed")
	}
	return t
}

// Cancel abandons an unfinished task and immediately wakes every waiter.
//
// NEW and PENDING tasks are marked FAILED and removed from their pool.
// RUNNING tasks are marked FAILED and the run outcome is discarded; the
// run context is canceled so implementations can exit early, but the
// worker is not preempted. Terminal tasks are unaffected.
//
// Cancel returns true when the task was canceled before its run began.
func (t *Task[A, R]) Cancel(cause error) bool {
	t.mu.Lock()
	prev := t.state
	if prev.Terminal() {
		t.mu.Unlock()
		return false
	}
	if cause == nil {
		cause = fmt.Errorf("%w: task canceled", ErrCancelled)
	}
	t.err = cause
	t.state = types.StateFailed
	t.canceled = true
	close(t.done)
	p := t.pl
	t.mu.Unlock()

	t.runCancel()
	if p != nil {
		p.Dequeue(t)
	}
	metrics.Default().RecordCancelled(errors.Is(cause, ErrTimeout))
	t.emit("task.cancelled")
	return prev == types.StateNew || prev == types.StatePending
}

// Wait blocks until the task completes or the context is done. It reports
// whether the task is now complete. Wait does not submit.
func (t *Task[A, R]) Wait(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-t.done:
		return true
	case <-ctx.Done():
		select {
		case <-t.done:
			return true
		default:
			return false
		}
	}
}

// Result submits the task and returns the result as soon as it is
// available. If the run fails or the task is canceled early, the fallback
// value is returned instead; without a (successful) fallback the original
// failure is returned.
//
// When the context expires before a result is available, the task is
// canceled with ErrTimeout. To wait a bounded time without canceling, use
// Wait.
func (t *Task[A, R]) Result(ctx context.Context) (R, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	t.Submit()

	select {
	case <-t.done:
	case <-ctx.Done():
		t.Cancel(fmt.Errorf("%w: no result within deadline", ErrTimeout))
	}
	// Terminal either way: a concurrent completion beats Cancel, and
	// Cancel closes done itself otherwise.
	<-t.done

	t.mu.Lock()
	state := t.state
	result := t.result
	failure := t.err
	t.mu.Unlock()

	if state == types.StateSucceeded {
		return result, nil
	}
	if t.tryFallback() {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.fbResult, nil
	}
	var zero R
	return zero, failure
}

// Err returns the task failure, waiting for completion first. A successful
// task yields nil. The recorded failure is the original run error even
// when a fallback succeeded.
//
// Err is safe to call from inside a fallback: once the task is complete it
// returns without taking the task lock.
func (t *Task[A, R]) Err(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	default:
	}
	_, _ = t.Result(ctx)
	return t.err
}

// tryFallback attempts the fallback once a failure is recorded. The
// attempt happens at most once; later callers observe the cached outcome.
// It reports whether a fallback result is available.
func (t *Task[A, R]) tryFallback() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == types.StateFailed && t.fbState == types.StateNew {
		if t.def.spec.Fallback == nil {
			t.fbState = types.StateFailed
		} else {
			result, err := t.invokeFallback()
			if err != nil {
				t.fbErr = err
				t.fbState = types.StateFailed
				t.logger.Error("fallback failed", "error", err)
				metrics.Default().RecordFallback(false)
			} else {
				t.fbResult = result
				t.fbState = types.StateSucceeded
				metrics.Default().RecordFallback(true)
			}
		}
	}
	return t.fbState == types.StateSucceeded
}

// Exec runs the task on a pool worker.
//
// The run outcome is recorded only while the task is still RUNNING; a task
// canceled mid-run keeps its cancellation error. Cleanup runs after the
// run in every case, with failures logged and swallowed.
func (t *Task[A, R]) Exec() {
	t.mu.Lock()
	if t.state != types.StatePending {
		// Canceled before pickup.
		t.mu.Unlock()
		return
	}
	t.state = types.StateRunning
	t.mu.Unlock()

	start := time.Now()
	result, runErr := t.invokeRun()
	duration := time.Since(start).Seconds()
	if runErr != nil {
		t.logger.Error("command failed", "error", runErr)
	}

	t.mu.Lock()
	completed := t.state == types.StateRunning
	if completed {
		if runErr != nil {
			t.state = types.StateFailed
			t.err = runErr
		} else {
			t.state = types.StateSucceeded
			t.result = result
		}
		close(t.done)
	}
	t.mu.Unlock()

	if completed {
		if runErr != nil {
			metrics.Default().RecordFailed(duration)
			t.emit("task.failed")
		} else {
			metrics.Default().RecordSucceeded(duration)
			t.emit("task.completed")
		}
	}

	if t.def.spec.Cleanup != nil {
		t.invokeCleanup()
	}
}

// invokeRun calls the user run function, converting a panic into an error.
func (t *Task[A, R]) invokeRun() (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panic: %v", r)
		}
	}()
	return t.def.spec.Run(t.runCtx, t.args)
}

// invokeFallback calls the user fallback with the original arguments,
// converting a panic into an error. The fallback gets a fresh context: the
// run context is already canceled on the cancel and timeout paths.
func (t *Task[A, R]) invokeFallback() (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fallback panic: %v", r)
		}
	}()
	return t.def.spec.Fallback(context.Background(), t.args)
}

// invokeCleanup calls the user cleanup, logging and swallowing any panic.
func (t *Task[A, R]) invokeCleanup() {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("command cleanup failed", "panic", r)
		}
	}()
	t.def.spec.Cleanup()
}

// emit publishes a task lifecycle event on the root bus.
func (t *Task[A, R]) emit(name string) {
	eventbus.Emit(name, map[string]any{
		"group":   t.def.group.Name(),
		"command": t.def.name,
		"task":    t.id,
	})
}

// IsRunning reports whether the run function is currently executing.
func (t *Task[A, R]) IsRunning() bool {
	return t.State() == types.StateRunning
}

// IsCompleted reports whether the task reached a terminal state.
func (t *Task[A, R]) IsCompleted() bool {
	return t.State().Terminal()
}

// IsCanceled reports whether the task was canceled or timed out.
func (t *Task[A, R]) IsCanceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

// IsTimeout reports whether the failure was caused by a timeout.
func (t *Task[A, R]) IsTimeout() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return errors.Is(t.err, ErrTimeout)
}

// IsSuccess reports whether the run function completed successfully.
func (t *Task[A, R]) IsSuccess() bool {
	return t.State() == types.StateSucceeded
}

// IsFailure reports whether the run failed or the task was canceled early.
func (t *Task[A, R]) IsFailure() bool {
	return t.State() == types.StateFailed
}

// IsFallback reports whether the result originates from the fallback. On a
// failed task this triggers the fallback attempt.
func (t *Task[A, R]) IsFallback() bool {
	return t.tryFallback()
}

// HasResult reports whether a result is available: the next Result call
// will neither block nor fail.
func (t *Task[A, R]) HasResult() bool {
	return t.IsSuccess() || t.IsFallback()
}
