// ============================================================================
// Breakwater Event Bus - Telemetry Fan-Out
// ============================================================================
//
// Package: eventbus
// File: eventbus.go
// Purpose: Single-consumer fan-out of telemetry events to registered sinks
//
// Design:
//   Emit stamps each event with a monotonically increasing id and a
//   wall-clock timestamp, then hands it to a queue. A dedicated consumer
//   goroutine drains the queue and invokes every registered sink in
//   registration order. Emission never blocks on sink execution.
//
// Failure Isolation:
//   A sink that returns an error or panics is removed from the active set,
//   and a "pool.sinkfailed" event is emitted describing the sink and the
//   failure. A broken sink can therefore never wedge the bus.
//
// Shutdown:
//   Shutdown enqueues a sentinel and joins the consumer, so every event
//   emitted before the call is delivered before Shutdown returns.
//
// ============================================================================

// Package eventbus provides an in-process telemetry event bus.
package eventbus

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/ChuLiYu/breakwater/pkg/types"
)

// queueCapacity bounds the in-flight event queue. Events are dropped when
// the consumer has fallen this far behind; Emit never blocks on sinks.
const queueCapacity = 1024

// Sink consumes telemetry events. Returning an error removes the sink from
// the bus.
type Sink interface {
	Consume(event types.Event) error
}

// funcSink adapts a plain function to the Sink interface. Two funcSinks are
// considered the same sink when they wrap the same function.
type funcSink struct {
	fn func(event types.Event) error
}

func (s *funcSink) Consume(event types.Event) error {
	return s.fn(event)
}

func (s *funcSink) String() string {
	return fmt.Sprintf("<FuncSink of %v>", reflect.ValueOf(s.fn))
}

// Bus fans telemetry events out to registered sinks from a single consumer
// goroutine.
type Bus struct {
	mu     sync.Mutex
	nextID int64
	sinks  []Sink

	queue chan types.Event
	done  chan struct{}

	logger *slog.Logger
}

// New creates a bus and starts its consumer goroutine.
func New() *Bus {
	b := &Bus{
		queue:  make(chan types.Event, queueCapacity),
		done:   make(chan struct{}),
		logger: slog.With("component", "eventbus"),
	}
	go b.sinkLoop(b.queue)
	return b
}

// AddSink registers a sink. Adding a sink that is already registered has no
// effect; two function sinks are the same sink when they wrap the same
// function.
func (b *Bus) AddSink(sink Sink) Sink {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sinks {
		if sameSink(s, sink) {
			return s
		}
	}
	b.sinks = append(b.sinks, sink)
	return sink
}

// AddSinkFunc registers a plain function as a sink.
func (b *Bus) AddSinkFunc(fn func(event types.Event) error) Sink {
	return b.AddSink(&funcSink{fn: fn})
}

// sameSink reports whether a and b identify the same sink. Function sinks
// compare by the identity of the wrapped function, everything else by the
// identity of the Sink value.
func sameSink(a, b Sink) bool {
	fa, aok := a.(*funcSink)
	fb, bok := b.(*funcSink)
	if aok && bok {
		return reflect.ValueOf(fa.fn).Pointer() == reflect.ValueOf(fb.fn).Pointer()
	}
	return a == b
}

// ClearSinks removes every registered sink.
func (b *Bus) ClearSinks() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = nil
}

// Emit stamps the event with a monotonic "_id" and wall-clock "_ts" and
// enqueues it for delivery. Field keys are copied into the event as-is.
func (b *Bus) Emit(name string, fields map[string]any) {
	event := make(types.Event, len(fields)+3)
	for k, v := range fields {
		event[k] = v
	}
	event["name"] = name
	event["_ts"] = float64(time.Now().UnixNano()) / float64(time.Second)

	b.mu.Lock()
	event["_id"] = b.nextID
	b.nextID++
	queue := b.queue
	b.mu.Unlock()

	if queue == nil {
		// Bus already shut down, the event is dropped.
		return
	}
	select {
	case queue <- event:
	default:
		// A full queue means the consumer is wedged far behind; dropping
		// keeps emitters (including the consumer itself) from blocking.
		b.logger.Warn("event queue full, dropping event", "event", name)
	}
}

// snapshotSinks returns the sinks registered at this moment.
func (b *Bus) snapshotSinks() []Sink {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Sink(nil), b.sinks...)
}

// sinkLoop drains the queue and delivers each event to all sinks in
// registration order. A nil event is the shutdown sentinel. The queue is
// passed in because Shutdown clears b.queue before sending the sentinel.
func (b *Bus) sinkLoop(queue chan types.Event) {
	defer close(b.done)
	for event := range queue {
		if event == nil {
			return
		}
		for _, sink := range b.snapshotSinks() {
			if err := b.consume(sink, event); err != nil {
				b.removeSinkAfterError(sink, err)
			}
		}
	}
}

// consume invokes a single sink, converting a panic into an error.
func (b *Bus) consume(sink Sink, event types.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return sink.Consume(event)
}

// removeSinkAfterError evicts a failing sink and reports the failure on the
// bus itself.
func (b *Bus) removeSinkAfterError(sink Sink, cause error) {
	b.mu.Lock()
	removed := false
	for i, s := range b.sinks {
		if sameSink(s, sink) {
			b.sinks = append(b.sinks[:i], b.sinks[i+1:]...)
			removed = true
			break
		}
	}
	b.mu.Unlock()

	if removed {
		b.logger.Warn("event sink removed after failure",
			"sink", fmt.Sprintf("%v", sink), "error", cause)
		b.Emit("pool.sinkfailed", map[string]any{
			"sink":  fmt.Sprintf("%v", sink),
			"error": cause.Error(),
		})
	}
}

// Shutdown stops the consumer after delivering every event emitted so far.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	closed := b.queue == nil
	queue := b.queue
	b.queue = nil
	b.mu.Unlock()
	if closed {
		<-b.done
		return
	}
	queue <- nil // sentinel
	<-b.done
}
