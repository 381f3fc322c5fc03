// Package store provides in-memory implementations of the engine's
// collaborator interfaces, used by tests and local development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shiftpal/shift-engine/engine"
)

// =============================================================================
// MEMORY SETTINGS STORE
// =============================================================================

type MemorySettings struct {
	mu       sync.RWMutex
	settings engine.AppSettings

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(engine.AppSettings)
}

func NewMemorySettings(initial engine.AppSettings) *MemorySettings {
	return &MemorySettings{settings: initial, subs: make(map[int]func(engine.AppSettings))}
}

func (m *MemorySettings) GetSettings(_ context.Context) (engine.AppSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, nil
}

func (m *MemorySettings) SetPreferences(_ context.Context, p engine.Preferences) error {
	m.mu.Lock()
	m.settings.Preferences = p
	snapshot := m.settings
	m.mu.Unlock()
	m.notify(snapshot)
	return nil
}

func (m *MemorySettings) SetPayRules(_ context.Context, r engine.PayRules) error {
	m.mu.Lock()
	m.settings.Rules = r
	snapshot := m.settings
	m.mu.Unlock()
	m.notify(snapshot)
	return nil
}

func (m *MemorySettings) SetNotificationPrefs(_ context.Context, n engine.NotificationPrefs) error {
	m.mu.Lock()
	m.settings.Notifications = n
	snapshot := m.settings
	m.mu.Unlock()
	m.notify(snapshot)
	return nil
}

func (m *MemorySettings) SetRates(_ context.Context, rates []engine.PayRate) error {
	m.mu.Lock()
	m.settings.Rates = append([]engine.PayRate(nil), rates...)
	snapshot := m.settings
	m.mu.Unlock()
	m.notify(snapshot)
	return nil
}

func (m *MemorySettings) Subscribe(fn func(engine.AppSettings)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *MemorySettings) notify(s engine.AppSettings) {
	m.subMu.Lock()
	fns := make([]func(engine.AppSettings), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// =============================================================================
// MEMORY TIMER PERSISTENCE
// =============================================================================

// MemoryTimer holds at most one active session plus the finished shifts,
// storing absolute timestamps only.
type MemoryTimer struct {
	mu      sync.RWMutex
	session *engine.PersistedTimer
	shifts  []engine.Shift

	// FailWrites simulates a persistence outage; mutating calls error and
	// nothing changes.
	FailWrites error
}

func NewMemoryTimer() *MemoryTimer { return &MemoryTimer{} }

func (m *MemoryTimer) GetRunningTimer(_ context.Context) (*engine.PersistedTimer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, nil
	}
	cp := *m.session
	cp.Breaks = append([]engine.Break(nil), m.session.Breaks...)
	return &cp, nil
}

func (m *MemoryTimer) StartTimer(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.session = &engine.PersistedTimer{Status: engine.StatusRunning, StartedAt: at}
	return nil
}

func (m *MemoryTimer) PauseTimer(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	if m.session == nil {
		return nil
	}
	m.session.Status = engine.StatusPaused
	m.session.Breaks = append(m.session.Breaks, engine.Break{Start: at})
	return nil
}

func (m *MemoryTimer) ResumeTimer(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	if m.session == nil || len(m.session.Breaks) == 0 {
		return nil
	}
	end := at
	m.session.Breaks[len(m.session.Breaks)-1].End = &end
	m.session.Status = engine.StatusRunning
	return nil
}

func (m *MemoryTimer) UndoLastBreak(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	if m.session == nil || len(m.session.Breaks) == 0 {
		return nil
	}
	removed := m.session.Breaks[len(m.session.Breaks)-1]
	m.session.Breaks = m.session.Breaks[:len(m.session.Breaks)-1]
	if removed.End == nil {
		m.session.Status = engine.StatusRunning
	}
	return nil
}

func (m *MemoryTimer) SetCurrentBreakNote(_ context.Context, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	if m.session == nil || len(m.session.Breaks) == 0 {
		return nil
	}
	m.session.Breaks[len(m.session.Breaks)-1].Note = note
	return nil
}

func (m *MemoryTimer) StopTimer(_ context.Context, shift engine.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.session = nil
	m.shifts = append(m.shifts, shift)
	sort.Slice(m.shifts, func(i, j int) bool { return m.shifts[i].Start.Before(m.shifts[j].Start) })
	return nil
}

// ShiftsForDate makes MemoryTimer usable as the deriver's shift source.
func (m *MemoryTimer) ShiftsForDate(_ context.Context, date time.Time) ([]engine.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []engine.Shift
	for _, s := range m.shifts {
		if engine.SameDate(s.Start, date) {
			result = append(result, s)
		}
	}
	return result, nil
}

// AddShift seeds a finished shift directly (test setup).
func (m *MemoryTimer) AddShift(shift engine.Shift) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts = append(m.shifts, shift)
	sort.Slice(m.shifts, func(i, j int) bool { return m.shifts[i].Start.Before(m.shifts[j].Start) })
}

// =============================================================================
// MEMORY HISTORY STORE
// =============================================================================

type MemoryHistory struct {
	mu      sync.RWMutex
	timer   *MemoryTimer
	entries []engine.PayCalculationEntry
}

// NewMemoryHistory reads shifts through timer so tracker-mode derivation
// sees the same data the state machine produced.
func NewMemoryHistory(timer *MemoryTimer) *MemoryHistory {
	return &MemoryHistory{timer: timer}
}

func (m *MemoryHistory) ShiftsForDate(ctx context.Context, date time.Time) ([]engine.Shift, error) {
	return m.timer.ShiftsForDate(ctx, date)
}

func (m *MemoryHistory) GetPayHistory(_ context.Context) ([]engine.PayCalculationEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]engine.PayCalculationEntry(nil), m.entries...), nil
}

func (m *MemoryHistory) SavePayCalculation(_ context.Context, entry engine.PayCalculationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}
