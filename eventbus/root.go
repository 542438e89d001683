package eventbus

import (
	"sync"

	"github.com/ChuLiYu/breakwater/pkg/types"
)

// The root bus backs the package-level Emit and SinkFunc helpers. It is
// created on first use and owned by the runtime handle for shutdown.
var (
	rootOnce sync.Once
	root     *Bus
)

// Default returns the process-wide root bus.
func Default() *Bus {
	rootOnce.Do(func() {
		root = New()
	})
	return root
}

// Emit emits an event on the root bus.
func Emit(name string, fields map[string]any) {
	Default().Emit(name, fields)
}

// SinkFunc registers a function as an event sink on the root bus.
func SinkFunc(fn func(event types.Event) error) Sink {
	return Default().AddSinkFunc(fn)
}

// ResetDefault replaces the root bus, shutting the previous one down.
// Test helper.
func ResetDefault() {
	rootOnce.Do(func() {})
	if root != nil {
		root.Shutdown()
	}
	root = New()
}
