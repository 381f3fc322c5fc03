/*
store.go - Collaborator contracts consumed by the engine

PURPOSE:
  The engine performs no I/O itself; it is driven through these interfaces.
  Implementations live outside the core (store/sqlite for production,
  engine/store for in-memory testing).

PERSISTED SHAPE CONTRACT:
  TimerPersistence stores absolute timestamps for the session start and for
  every break boundary - never durations. Elapsed time must always be
  recomputable from wall-clock "now" after a process restart; this is a
  correctness requirement, not an implementation detail.

SEE ALSO:
  - engine/store/memory.go: In-memory implementations
  - store/sqlite: SQLite implementations
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// SETTINGS STORE
// =============================================================================

// SettingsStore holds the normalized app settings and pushes changes to
// subscribers. Rules cross this boundary already in canonical shape.
type SettingsStore interface {
	GetSettings(ctx context.Context) (AppSettings, error)
	SetPreferences(ctx context.Context, p Preferences) error
	SetPayRules(ctx context.Context, r PayRules) error
	SetNotificationPrefs(ctx context.Context, n NotificationPrefs) error
	SetRates(ctx context.Context, rates []PayRate) error

	// Subscribe registers a callback invoked with the full settings snapshot
	// after every change. The returned function unsubscribes.
	Subscribe(fn func(AppSettings)) (unsubscribe func())
}

// =============================================================================
// TIMER PERSISTENCE
// =============================================================================

// PersistedTimer is the durable form of an active session.
type PersistedTimer struct {
	Status    SessionStatus
	StartedAt time.Time
	Breaks    []Break
}

// TimerPersistence is the durable backing of the timer state machine. Each
// method mirrors one transition; a failed write must leave the stored
// session unchanged (no partial mutation).
type TimerPersistence interface {
	// GetRunningTimer returns the active session, or nil when idle.
	GetRunningTimer(ctx context.Context) (*PersistedTimer, error)

	StartTimer(ctx context.Context, at time.Time) error
	PauseTimer(ctx context.Context, at time.Time) error
	ResumeTimer(ctx context.Context, at time.Time) error
	UndoLastBreak(ctx context.Context) error
	SetCurrentBreakNote(ctx context.Context, note string) error

	// StopTimer clears the active session and records the finished shift
	// atomically.
	StopTimer(ctx context.Context, shift Shift) error
}

// =============================================================================
// HISTORY STORE
// =============================================================================

// HistoryStore owns finished shifts and saved pay calculations. Saved
// entries are append-only; nothing here is ever mutated.
type HistoryStore interface {
	// ShiftsForDate returns the finished shifts whose start falls on the
	// given calendar date, ordered by start.
	ShiftsForDate(ctx context.Context, date time.Time) ([]Shift, error)

	GetPayHistory(ctx context.Context) ([]PayCalculationEntry, error)
	SavePayCalculation(ctx context.Context, entry PayCalculationEntry) error
}
