/*
breaks.go - Ordered pause/resume record for one timer session

PURPOSE:
  BreakLedger is a pure data structure owned exclusively by the timer state
  machine. It records pause intervals in start order and only ever mutates
  its tail: a new open break is appended, the newest break is closed on
  resume, and the newest break is removed on undo. Nothing in the middle of
  the list is ever touched.

INVARIANTS:
  - Breaks are ordered by Start and non-overlapping
  - At most the last break may be open (End == nil)
  - Sum of break durations never exceeds elapsed wall time

SEE ALSO:
  - timer.go: The only caller of the mutating operations
*/
package engine

import "time"

// BreakLedger holds the breaks of the active session, tail-mutable only.
type BreakLedger struct {
	breaks []Break
}

func NewBreakLedger(breaks []Break) *BreakLedger {
	return &BreakLedger{breaks: append([]Break(nil), breaks...)}
}

// Open appends a new open break starting at now.
func (l *BreakLedger) Open(now time.Time) {
	l.breaks = append(l.breaks, Break{Start: now})
}

// CloseLast closes the open tail break at now. No-op without an open break.
func (l *BreakLedger) CloseLast(now time.Time) {
	if !l.HasOpen() {
		return
	}
	end := now
	l.breaks[len(l.breaks)-1].End = &end
}

// RemoveLast removes the newest break entirely, open or closed. Returns the
// removed break and whether one existed.
func (l *BreakLedger) RemoveLast() (Break, bool) {
	if len(l.breaks) == 0 {
		return Break{}, false
	}
	last := l.breaks[len(l.breaks)-1]
	l.breaks = l.breaks[:len(l.breaks)-1]
	return last, true
}

// SetLastNote sets the note on the open tail break.
func (l *BreakLedger) SetLastNote(note string) bool {
	if !l.HasOpen() {
		return false
	}
	l.breaks[len(l.breaks)-1].Note = note
	return true
}

func (l *BreakLedger) HasOpen() bool {
	return len(l.breaks) > 0 && l.breaks[len(l.breaks)-1].IsOpen()
}

func (l *BreakLedger) Len() int { return len(l.breaks) }

// Breaks returns a copy of the ledger contents.
func (l *BreakLedger) Breaks() []Break {
	return append([]Break(nil), l.breaks...)
}

// ClosedTotal sums closed break durations.
func (l *BreakLedger) ClosedTotal() time.Duration {
	var total time.Duration
	for _, b := range l.breaks {
		if !b.IsOpen() {
			total += b.Duration(time.Time{})
		}
	}
	return total
}

// TotalAt sums all break durations, evaluating an open break against now.
// Only the tail break may be open, so this is the closed total plus the
// open tail.
func (l *BreakLedger) TotalAt(now time.Time) time.Duration {
	return l.ClosedTotal() + l.OpenDurationAt(now)
}

// OpenDurationAt returns the length of the current open break, zero when
// none is open.
func (l *BreakLedger) OpenDurationAt(now time.Time) time.Duration {
	if !l.HasOpen() {
		return 0
	}
	return l.breaks[len(l.breaks)-1].Duration(now)
}
