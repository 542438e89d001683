// ============================================================================
// Breakwater Command - Definitions and Registration
// ============================================================================
//
// Package: command
// File: command.go
// Purpose: Command definitions and their binding to groups
//
// A command is a registration-time-known entity: a unique name within its
// group, a pool binding, and up to three behaviors (Run, Fallback,
// Cleanup). Registering a definition binds it to its group, validates name
// uniqueness and assigns a child logger — the Go rendering of declaring a
// command.
//
// ============================================================================

package command

import (
	"context"
	"fmt"
	"log/slog"
)

// Command describes a unit of work before registration.
//
// Run MUST be set; omitting it is a definition-time error. Fallback and
// Cleanup are optional. Empty Group and Pool mean the defaults.
type Command[A, R any] struct {
	// Name uniquely identifies the command within its group.
	Name string
	// Group names the owning group. Empty means "default".
	Group string
	// Pool names the executor pool. Empty means "default".
	Pool string

	// Run performs the primary action. The context is canceled when the
	// task is canceled, so implementations may exit early at safe points.
	Run func(ctx context.Context, args A) (R, error)
	// Fallback produces a substitute result after Run fails or the task is
	// canceled or timed out. Invoked with the original arguments.
	Fallback func(ctx context.Context, args A) (R, error)
	// Cleanup runs on the worker after Run returns, regardless of outcome.
	Cleanup func()
}

// Definition is a command bound to its group. Create tasks with New.
type Definition[A, R any] struct {
	spec     Command[A, R]
	name     string
	poolName string
	group    *Group
	logger   *slog.Logger
}

// Register binds a command definition to its group.
//
// Definition-time errors:
//   - nil Run or empty Name: ErrSetup
//   - duplicate name within the group: ErrName
func Register[A, R any](spec Command[A, R]) (*Definition[A, R], error) {
	if spec.Run == nil {
		return nil, fmt.Errorf("%w: commands must implement Run", ErrSetup)
	}
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: commands must be named", ErrSetup)
	}

	poolName := spec.Pool
	if poolName == "" {
		poolName = DefaultName
	}
	group := NewGroup(spec.Group)

	def := &Definition[A, R]{
		spec:     spec,
		name:     spec.Name,
		poolName: poolName,
		group:    group,
		logger:   group.Logger().With("command", spec.Name),
	}
	if err := group.register(spec.Name, def); err != nil {
		return nil, err
	}
	return def, nil
}

// MustRegister is Register that panics on a definition-time error. Meant
// for init-time declarations.
func MustRegister[A, R any](spec Command[A, R]) *Definition[A, R] {
	def, err := Register(spec)
	if err != nil {
		panic(err)
	}
	return def
}

// CommandName returns the unique command name within its group.
func (d *Definition[A, R]) CommandName() string {
	return d.name
}

// PoolName returns the executor pool name the command is bound to.
func (d *Definition[A, R]) PoolName() string {
	return d.poolName
}

// GroupOf returns the owning group.
func (d *Definition[A, R]) GroupOf() *Group {
	return d.group
}

// GetCommand returns the definition registered under name in the group,
// typed to its argument and result types. A name registered with different
// types yields ErrType.
func GetCommand[A, R any](g *Group, name string) (*Definition[A, R], error) {
	cmd, err := g.Lookup(name)
	if err != nil {
		return nil, err
	}
	def, ok := cmd.(*Definition[A, R])
	if !ok {
		return nil, fmt.Errorf("%w: command %q registered with different types",
			ErrType, name)
	}
	return def, nil
}
