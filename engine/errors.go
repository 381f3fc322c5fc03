/*
errors.go - Centralized error types for the engine

PURPOSE:
  All engine error types in one place. The engine recovers most conditions
  locally: malformed numeric input coerces to zero, and a date with no
  tracked shifts degrades to an all-zero allocation. Only two kinds of
  condition surface to callers as errors:

  1. Invalid timer transitions (start while running, resume while idle, ...)
  2. Collaborator I/O failures (persistence reads/writes)

  A third condition, "no usable base rate", is not a failure: the breakdown
  is withheld and ErrNotConfigured tells the caller to treat it as a
  distinct absent state, never as a zero breakdown.

SEE ALSO:
  - timer.go: Returns transition errors
  - orchestrator.go: Returns ErrNotConfigured
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotConfigured is returned when no usable base rate exists (no saved
	// rate resolved and no manual override). The breakdown is withheld.
	ErrNotConfigured = errors.New("no base rate configured")

	// ErrTimerAlreadyRunning is returned by start when a session is active.
	ErrTimerAlreadyRunning = errors.New("timer already running")

	// ErrTimerNotRunning is returned by stop/pause when the session is idle.
	ErrTimerNotRunning = errors.New("timer not running")

	// ErrTimerNotPaused is returned by resume/undo when not paused.
	ErrTimerNotPaused = errors.New("timer not paused")

	// ErrNoOpenBreak is returned when a break note is set but no break is open.
	ErrNoOpenBreak = errors.New("no open break")

	// ErrNoBreaks is returned by undo when the session has no breaks left.
	ErrNoBreaks = errors.New("no breaks to undo")

	// ErrPersistence wraps collaborator read/write failures. The in-memory
	// session is left unchanged when a write fails.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidTransitionError reports a timer operation attempted from the wrong
// state.
type InvalidTransitionError struct {
	Op   string
	From SessionStatus
	Base error
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s state", e.Op, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return e.Base }

// PersistenceError carries the failed operation and underlying cause.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true for conditions caused by the caller's state or
// input rather than by the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrTimerAlreadyRunning) ||
		errors.Is(err, ErrTimerNotRunning) ||
		errors.Is(err, ErrTimerNotPaused) ||
		errors.Is(err, ErrNoOpenBreak) ||
		errors.Is(err, ErrNoBreaks) ||
		errors.Is(err, ErrNotConfigured)
}
