/*
timer.go - Shift timer state machine

PURPOSE:
  Owns the single active TimerSession and turns wall-clock events into
  elapsed/break totals. Transitions:

    Idle    --start-->   Running
    Running --pause-->   Paused      (opens a break)
    Paused  --resume-->  Running     (closes the open break)
    Paused  --undo-->    Paused      (removes newest closed break)
    Paused  --undo-->    Running     (removes the open break; see below)
    any*    --stop-->    Idle        (emits an immutable Shift)

  Undoing while the break is still open removes it entirely and returns the
  machine to Running: no suspended interval remains, so elapsed time reads
  as though pause had never been called. With no breaks at all, undo is
  rejected with ErrNoBreaks and nothing changes.

CONCURRENCY:
  Transitions may be triggered by overlapping external events (tick, user
  action, settings change, view focus). Every operation, including the
  read-only Snapshot, takes the machine mutex, so racing transitions are
  serialized and the loser observes the new state and is rejected cleanly
  rather than corrupting the break ledger.

DURABILITY:
  Every transition writes through to TimerPersistence before committing in
  memory; a failed write leaves the machine unchanged. The periodic display
  tick never writes: snapshots are pure functions of the persisted start
  timestamp, the break list, and "now", so a restart reproduces identical
  numbers.

SEE ALSO:
  - breaks.go: Tail-only break ledger
  - store.go: TimerPersistence contract
*/
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// TIMER STATE MACHINE
// =============================================================================

type TimerStateMachine struct {
	mu      sync.Mutex
	clock   func() time.Time
	persist TimerPersistence
	newID   func() string

	status    SessionStatus
	startedAt time.Time
	breaks    *BreakLedger
}

// NewTimerStateMachine creates an idle machine backed by persist. The clock
// and ID generator are injectable for tests; nil picks the defaults.
func NewTimerStateMachine(persist TimerPersistence, clock func() time.Time, newID func() string) *TimerStateMachine {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = defaultShiftID
	}
	return &TimerStateMachine{
		clock:   clock,
		persist: persist,
		newID:   newID,
		status:  StatusIdle,
		breaks:  NewBreakLedger(nil),
	}
}

func defaultShiftID() string {
	return fmt.Sprintf("shift-%d", time.Now().UnixNano())
}

// Load restores the machine from the persisted session, if any. Restored
// state reproduces the exact numbers of the pre-restart process because
// only absolute timestamps are stored.
func (t *TimerStateMachine) Load(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.persist.GetRunningTimer(ctx)
	if err != nil {
		return &PersistenceError{Op: "load timer", Cause: err}
	}
	if rec == nil {
		t.status = StatusIdle
		t.breaks = NewBreakLedger(nil)
		return nil
	}
	t.status = rec.Status
	t.startedAt = rec.StartedAt
	t.breaks = NewBreakLedger(rec.Breaks)
	return nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Start begins a new session. Valid only from Idle.
func (t *TimerStateMachine) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusIdle {
		return &InvalidTransitionError{Op: "start", From: t.status, Base: ErrTimerAlreadyRunning}
	}
	now := t.clock()
	if err := t.persist.StartTimer(ctx, now); err != nil {
		return &PersistenceError{Op: "start timer", Cause: err}
	}
	t.status = StatusRunning
	t.startedAt = now
	t.breaks = NewBreakLedger(nil)
	return nil
}

// Pause opens a break. Valid only from Running.
func (t *TimerStateMachine) Pause(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusRunning {
		return &InvalidTransitionError{Op: "pause", From: t.status, Base: ErrTimerNotRunning}
	}
	now := t.clock()
	if err := t.persist.PauseTimer(ctx, now); err != nil {
		return &PersistenceError{Op: "pause timer", Cause: err}
	}
	t.breaks.Open(now)
	t.status = StatusPaused
	return nil
}

// Resume closes the open break. Valid only from Paused.
func (t *TimerStateMachine) Resume(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusPaused {
		return &InvalidTransitionError{Op: "resume", From: t.status, Base: ErrTimerNotPaused}
	}
	now := t.clock()
	if err := t.persist.ResumeTimer(ctx, now); err != nil {
		return &PersistenceError{Op: "resume timer", Cause: err}
	}
	t.breaks.CloseLast(now)
	t.status = StatusRunning
	return nil
}

// UndoLastBreak removes the newest break entirely, restoring elapsed time
// as though it never happened. Removing the open break returns the machine
// to Running; removing a closed one leaves it Paused.
func (t *TimerStateMachine) UndoLastBreak(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusPaused {
		return &InvalidTransitionError{Op: "undo break", From: t.status, Base: ErrTimerNotPaused}
	}
	if t.breaks.Len() == 0 {
		return ErrNoBreaks
	}
	if err := t.persist.UndoLastBreak(ctx); err != nil {
		return &PersistenceError{Op: "undo break", Cause: err}
	}
	removed, _ := t.breaks.RemoveLast()
	if removed.IsOpen() {
		t.status = StatusRunning
	}
	return nil
}

// SetCurrentBreakNote annotates the open break. No state transition.
func (t *TimerStateMachine) SetCurrentBreakNote(ctx context.Context, note string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.breaks.HasOpen() {
		return ErrNoOpenBreak
	}
	if err := t.persist.SetCurrentBreakNote(ctx, note); err != nil {
		return &PersistenceError{Op: "set break note", Cause: err}
	}
	t.breaks.SetLastNote(note)
	return nil
}

// Stop finishes the session and emits an immutable Shift. Valid from
// Running or Paused; stopping an idle machine is a no-op error producing
// no Shift. When includeBreaks is true, break time is folded back into the
// reported duration while BreakMinutes is still reported separately.
func (t *TimerStateMachine) Stop(ctx context.Context, includeBreaks bool) (*Shift, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == StatusIdle {
		return nil, &InvalidTransitionError{Op: "stop", From: t.status, Base: ErrTimerNotRunning}
	}

	now := t.clock()
	totalBreak := t.breaks.TotalAt(now)
	elapsed := now.Sub(t.startedAt) - totalBreak
	if elapsed < 0 {
		elapsed = 0
	}

	duration := elapsed
	if includeBreaks {
		duration = now.Sub(t.startedAt)
	}

	minutes := roundToMinutes(duration)
	shift := Shift{
		ID:              t.newID(),
		Start:           t.startedAt,
		End:             now,
		DurationMinutes: minutes,
		BreakMinutes:    roundToMinutes(totalBreak),
		DurationText:    HourQuantityFromMinutes(minutes).String(),
	}

	if err := t.persist.StopTimer(ctx, shift); err != nil {
		return nil, &PersistenceError{Op: "stop timer", Cause: err}
	}

	t.status = StatusIdle
	t.startedAt = time.Time{}
	t.breaks = NewBreakLedger(nil)
	return &shift, nil
}

// =============================================================================
// READ-ONLY SNAPSHOT
// =============================================================================

// TimerSnapshot is the display state at one instant, recomputed on every
// read purely from the session timestamps and "now". The periodic tick
// calls this and holds no data of its own.
type TimerSnapshot struct {
	Status       SessionStatus
	StartedAt    time.Time
	Elapsed      time.Duration
	CurrentBreak time.Duration
	TotalBreak   time.Duration
	Breaks       []Break
}

func (t *TimerStateMachine) Snapshot() TimerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	snap := TimerSnapshot{Status: t.status}
	if t.status == StatusIdle {
		return snap
	}

	totalBreak := t.breaks.TotalAt(now)
	elapsed := now.Sub(t.startedAt) - totalBreak
	if elapsed < 0 {
		elapsed = 0
	}

	snap.StartedAt = t.startedAt
	snap.Elapsed = elapsed
	snap.CurrentBreak = t.breaks.OpenDurationAt(now)
	snap.TotalBreak = totalBreak
	snap.Breaks = t.breaks.Breaks()
	return snap
}

func roundToMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + 30*time.Second) / time.Minute)
}
