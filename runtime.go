// ============================================================================
// Breakwater Runtime - Lifetime Handle
// ============================================================================
//
// Package: breakwater
// File: runtime.go
// Purpose: Explicit ownership of the process-wide runner resources
//
// The runtime handle replaces process-exit hooks: callers create one
// Runtime, use the command/pool/eventbus packages freely, and call
// Shutdown when done. Shutdown closes every pool and drains the root event
// bus, so every event emitted before the call reaches its sinks.
//
// ============================================================================

// Package breakwater ties the runner together behind a lifetime-managed
// runtime handle.
package breakwater

import (
	"sync"

	"github.com/ChuLiYu/breakwater/eventbus"
	"github.com/ChuLiYu/breakwater/pkg/types"
	"github.com/ChuLiYu/breakwater/pool"
)

// Runtime owns the root event bus and the registered pools.
type Runtime struct {
	bus  *eventbus.Bus
	once sync.Once
}

// New returns a runtime handle over the process-wide runner state.
func New() *Runtime {
	return &Runtime{bus: eventbus.Default()}
}

// Bus returns the root event bus.
func (r *Runtime) Bus() *eventbus.Bus {
	return r.bus
}

// Sink registers a function as an event sink on the root bus.
func (r *Runtime) Sink(fn func(event types.Event) error) eventbus.Sink {
	return r.bus.AddSinkFunc(fn)
}

// Shutdown closes every registered pool and drains the root event bus.
// When block is true it waits for in-flight tasks to finish first.
// Shutdown is idempotent.
func (r *Runtime) Shutdown(block bool) {
	r.once.Do(func() {
		pool.ShutdownAll(block)
		r.bus.Shutdown()
	})
}
