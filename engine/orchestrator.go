/*
orchestrator.go - End-to-end pay calculation resolution

PURPOSE:
  Resolves one PayCalculationInput against the current settings into a
  PayBreakdown:

  - Hour allocation: derived from tracked shifts when mode is tracker and
    the caller supplied no explicit hours; otherwise the manual fields are
    used verbatim.
  - Effective rates: a positive manual rate overrides the saved rate; a
    dangling or absent rate ID is expected. With no usable base rate the
    breakdown is withheld entirely (ErrNotConfigured) - callers must treat
    "no breakdown" as distinct from "zero breakdown".

RECOMPUTE CONTRACT:
  Any change to rates, rules, date, mode, or hour fields must produce a
  fresh breakdown, and recomputes may overlap (tick, user edit, settings
  push). Each recompute is tagged with a monotonically increasing sequence
  number; a completed result whose sequence is older than the last
  committed one is discarded, so a stale response can never overwrite a
  newer one.

SAVING:
  Save snapshots the resolved rates and hour split at save time into an
  immutable PayCalculationEntry. Later rule changes never alter saved
  entries.

SEE ALSO:
  - allocation.go: Tracker-mode derivation
  - payrules.go / deductions.go: The arithmetic
*/
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

type Orchestrator struct {
	deriver *Deriver
	history HistoryStore
	clock   func() time.Time
	newID   func() string

	seq atomic.Uint64

	mu        sync.Mutex
	committed uint64
	latest    *PayBreakdown
}

// NewOrchestrator wires the calculation pipeline. clock and newID are
// injectable for tests; nil picks the defaults.
func NewOrchestrator(deriver *Deriver, history HistoryStore, clock func() time.Time, newID func() string) *Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &Orchestrator{deriver: deriver, history: history, clock: clock, newID: newID}
}

// Resolved is the full outcome of one calculation, including the snapshots
// a save would persist.
type Resolved struct {
	Breakdown  PayBreakdown
	Rates      ResolvedRates
	Allocation HourAllocation
}

// Calculate resolves input against settings into a breakdown. Returns
// ErrNotConfigured (breakdown withheld) when no usable base rate exists.
func (o *Orchestrator) Calculate(ctx context.Context, input PayCalculationInput, settings AppSettings) (*Resolved, error) {
	baseRate, ok := o.resolveBaseRate(input, settings)
	if !ok {
		return nil, ErrNotConfigured
	}
	overtimeRate := o.resolveOvertimeRate(input, settings)

	alloc, err := o.resolveAllocation(ctx, input, settings)
	if err != nil {
		return nil, err
	}

	gross := ComputeGross(GrossInput{
		Date:         input.Date,
		Allocation:   alloc,
		BaseRate:     baseRate,
		OvertimeRate: overtimeRate,
		Rules:        settings.Rules,
		DistanceKm:   input.DistanceKm,
	})
	deductions := ComputeDeductions(gross.Gross, settings.Rules.Tax, settings.Rules.NI)

	return &Resolved{
		Breakdown: PayBreakdown{
			Base:       gross.Base,
			Overtime:   gross.Overtime,
			Uplifts:    gross.Uplifts,
			Allowances: gross.Allowances,
			Gross:      gross.Gross,
			Tax:        deductions.Tax,
			NI:         deductions.NI,
			Total:      deductions.Net,
		},
		Rates:      ResolvedRates{Base: baseRate, Overtime: gross.OvertimeRate},
		Allocation: alloc,
	}, nil
}

// resolveBaseRate applies the override order: manual rate (if positive)
// beats the saved rate; neither present means the calculation cannot run.
func (o *Orchestrator) resolveBaseRate(input PayCalculationInput, settings AppSettings) (Money, bool) {
	if input.ManualBaseRate.IsPositive() {
		return input.ManualBaseRate, true
	}
	if rate, ok := settings.RateByID(input.HourlyRateID); ok {
		return rate.Value, true
	}
	return Money{}, false
}

// resolveOvertimeRate returns the explicit overtime rate when one exists;
// zero lets the gross computation fall back to the base rate or tier rule.
func (o *Orchestrator) resolveOvertimeRate(input PayCalculationInput, settings AppSettings) Money {
	if input.ManualOvertimeRate.IsPositive() {
		return input.ManualOvertimeRate
	}
	if rate, ok := settings.RateByID(input.OvertimeRateID); ok {
		return rate.Value
	}
	return ZeroMoney()
}

// resolveAllocation decides tracker derivation vs manual fields. Tracker
// mode derives only when the caller supplied no explicit hours at all; a
// user-entered split bypasses derivation entirely.
func (o *Orchestrator) resolveAllocation(ctx context.Context, input PayCalculationInput, settings AppSettings) (HourAllocation, error) {
	explicit := !input.HoursWorked.IsZero() || !input.OvertimeWorked.IsZero() ||
		input.NightBaseHours != nil || input.NightOvertimeHours != nil

	if input.Mode == ModeTracker && !explicit {
		return o.deriver.AllocationForDate(ctx, input.Date, settings)
	}

	alloc := HourAllocation{
		BaseMinutes:     input.HoursWorked.TotalMinutes(),
		OvertimeMinutes: input.OvertimeWorked.TotalMinutes(),
	}
	if input.NightBaseHours != nil {
		alloc.NightBaseMinutes = input.NightBaseHours.TotalMinutes()
	}
	if input.NightOvertimeHours != nil {
		alloc.NightOvertimeMinutes = input.NightOvertimeHours.TotalMinutes()
	}
	// Night minutes can never exceed their bucket.
	if alloc.NightBaseMinutes > alloc.BaseMinutes {
		alloc.NightBaseMinutes = alloc.BaseMinutes
	}
	if alloc.NightOvertimeMinutes > alloc.OvertimeMinutes {
		alloc.NightOvertimeMinutes = alloc.OvertimeMinutes
	}
	return alloc, nil
}

// =============================================================================
// RECOMPUTE - "last started wins" generation discipline
// =============================================================================

// Recompute runs a full calculation tagged with a fresh sequence number and
// commits the result only if no newer recompute has committed meanwhile.
// Returns the resolved result (nil when withheld) and whether it was
// committed as the latest.
func (o *Orchestrator) Recompute(ctx context.Context, input PayCalculationInput, settings AppSettings) (*Resolved, bool, error) {
	seq := o.seq.Add(1)

	resolved, err := o.Calculate(ctx, input, settings)
	if err != nil {
		// A withheld or failed result still participates in sequencing so a
		// later stale success cannot resurrect an outdated breakdown.
		o.commit(seq, nil)
		return nil, false, err
	}
	committed := o.commit(seq, &resolved.Breakdown)
	return resolved, committed, nil
}

func (o *Orchestrator) commit(seq uint64, breakdown *PayBreakdown) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if seq < o.committed {
		return false
	}
	o.committed = seq
	o.latest = breakdown
	return true
}

// Latest returns the last committed breakdown (nil when withheld or never
// computed) and its sequence number.
func (o *Orchestrator) Latest() (*PayBreakdown, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest, o.committed
}

// Invalidate drops the committed breakdown, forcing the next read to wait
// for a fresh recompute. Used when settings change out from under a view.
func (o *Orchestrator) Invalidate() {
	seq := o.seq.Add(1)
	o.commit(seq, nil)
}

// =============================================================================
// SAVE - Explicit, immutable history entries
// =============================================================================

// Save computes and persists the calculation as an immutable history
// entry, snapshotting the resolved rates and hour split at save time.
func (o *Orchestrator) Save(ctx context.Context, input PayCalculationInput, settings AppSettings) (*PayCalculationEntry, error) {
	resolved, err := o.Calculate(ctx, input, settings)
	if err != nil {
		return nil, err
	}
	entry := PayCalculationEntry{
		ID:           o.newID(),
		Input:        input,
		Pay:          resolved.Breakdown,
		RateSnapshot: resolved.Rates,
		CalcSnapshot: resolved.Allocation,
		CreatedAt:    o.clock(),
	}
	if err := o.history.SavePayCalculation(ctx, entry); err != nil {
		return nil, &PersistenceError{Op: "save calculation", Cause: err}
	}
	return &entry, nil
}

// History returns the saved calculations, oldest first.
func (o *Orchestrator) History(ctx context.Context) ([]PayCalculationEntry, error) {
	entries, err := o.history.GetPayHistory(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "load history", Cause: err}
	}
	return entries, nil
}
