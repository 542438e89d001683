// ============================================================================
// Breakwater Command Errors - Error Taxonomy
// ============================================================================
//
// Package: command
// File: errors.go
// Purpose: Sentinel errors for definition-time, submission and runtime
// failures
//
// Every sentinel wraps ErrCommand, so errors.Is(err, ErrCommand) matches
// any runner error while more specific sentinels keep their identity.
//
// ============================================================================

package command

import (
	"errors"
	"fmt"
)

// ErrCommand is the base error for the command error taxonomy.
var ErrCommand = errors.New("command error")

var (
	// ErrSetup indicates an invalid command definition, such as a missing
	// Run function or an empty name.
	ErrSetup = fmt.Errorf("%w: bad setup", ErrCommand)
	// ErrIntegrity indicates an internal consistency violation.
	ErrIntegrity = fmt.Errorf("%w: integrity violation", ErrCommand)

	// ErrType indicates a command retrieved with mismatched argument or
	// result types.
	ErrType = fmt.Errorf("%w: type mismatch", ErrCommand)
	// ErrName indicates a duplicate command name within a group.
	ErrName = fmt.Errorf("%w: name conflict", ErrCommand)

	// ErrCancelled is recorded on a task canceled before completion.
	ErrCancelled = fmt.Errorf("%w: cancelled", ErrCommand)
	// ErrTimeout is recorded on a task canceled by a deadline.
	ErrTimeout = fmt.Errorf("%w: timeout", ErrCommand)

	// ErrExecutor is the base error for executor lookup failures.
	ErrExecutor = fmt.Errorf("%w: executor error", ErrCommand)
	// ErrExecutorNotFound indicates an unknown pool name.
	ErrExecutorNotFound = fmt.Errorf("%w: executor not found", ErrExecutor)

	// ErrNotFound indicates an unknown command name.
	ErrNotFound = fmt.Errorf("%w: command not found", ErrCommand)
)
