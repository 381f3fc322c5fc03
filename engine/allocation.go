/*
allocation.go - Splitting tracked time into pay buckets

PURPOSE:
  Two independent, pure derivations over the shifts already recorded for a
  date plus the rule configuration:

  Overtime split: total minutes -> base vs overtime against a daily or
  weekly threshold. On a weekly basis the threshold is compared to the
  cumulative week total, and only the day's own minutes are allocated, in
  the same ratio as the day's contribution to the week.

  Night split: minutes of each shift interval overlapping the configured
  night clock window, apportioned to the base/overtime buckets in the
  overtime ratio and clamped so a bucket's night minutes never exceed the
  bucket itself.

  A date with no shifts yields all-zero allocations; that is an expected
  state, not a failure, and never blocks the rest of the pipeline.

INVARIANTS:
  - BaseMinutes + OvertimeMinutes == total tracked minutes, always
  - NightBaseMinutes <= BaseMinutes, NightOvertimeMinutes <= OvertimeMinutes

SEE ALSO:
  - payrules.go: Consumes the resolved HourAllocation
  - orchestrator.go: Skips derivation when a manual split was supplied
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OVERTIME SPLIT
// =============================================================================

// Split is a conserved division of one day's tracked minutes.
type Split struct {
	BaseMinutes     int
	OvertimeMinutes int
}

func (s Split) TotalMinutes() int { return s.BaseMinutes + s.OvertimeMinutes }

// SplitOvertime divides dayMinutes at the rule threshold. weekMinutes is
// the cumulative total for the pay-period week containing the date and is
// only consulted on a weekly basis.
func SplitOvertime(dayMinutes, weekMinutes int, rule OvertimeRule) Split {
	if dayMinutes <= 0 {
		return Split{}
	}
	if !rule.Enabled {
		return Split{BaseMinutes: dayMinutes}
	}

	threshold := rule.ThresholdMinutes()
	switch rule.Basis {
	case BasisWeekly:
		return splitWeekly(dayMinutes, weekMinutes, threshold)
	default:
		base := dayMinutes
		if base > threshold {
			base = threshold
		}
		return Split{BaseMinutes: base, OvertimeMinutes: dayMinutes - base}
	}
}

// splitWeekly allocates the day's minutes proportionally to the week-level
// base/overtime ratio. Overtime is rounded to whole minutes and base takes
// the remainder, so the split always conserves the day total.
func splitWeekly(dayMinutes, weekMinutes, threshold int) Split {
	if weekMinutes <= 0 {
		weekMinutes = dayMinutes
	}
	weekOvertime := weekMinutes - threshold
	if weekOvertime <= 0 {
		return Split{BaseMinutes: dayMinutes}
	}
	if weekOvertime > weekMinutes {
		weekOvertime = weekMinutes
	}

	ratio := decimal.NewFromInt(int64(weekOvertime)).Div(decimal.NewFromInt(int64(weekMinutes)))
	overtime := int(decimal.NewFromInt(int64(dayMinutes)).Mul(ratio).Round(0).IntPart())
	if overtime > dayMinutes {
		overtime = dayMinutes
	}
	if overtime < 0 {
		overtime = 0
	}
	return Split{BaseMinutes: dayMinutes - overtime, OvertimeMinutes: overtime}
}

// =============================================================================
// NIGHT SPLIT
// =============================================================================

// NightSplit reports how much of the night-window overlap falls in each
// pay bucket.
type NightSplit struct {
	BaseMinutes     int
	OvertimeMinutes int
}

func (n NightSplit) TotalMinutes() int { return n.BaseMinutes + n.OvertimeMinutes }

// SplitNight sums the per-interval overlap with the night window and
// apportions it across the buckets of split in the overtime ratio.
func SplitNight(intervals []ClockInterval, rule NightRule, split Split) NightSplit {
	if !rule.Enabled || split.TotalMinutes() == 0 {
		return NightSplit{}
	}

	night := 0
	for _, iv := range intervals {
		night += rule.Window.OverlapMinutes(iv)
	}
	if night == 0 {
		return NightSplit{}
	}
	if night > split.TotalMinutes() {
		night = split.TotalMinutes()
	}

	ratio := decimal.NewFromInt(int64(split.OvertimeMinutes)).
		Div(decimal.NewFromInt(int64(split.TotalMinutes())))
	overtime := int(decimal.NewFromInt(int64(night)).Mul(ratio).Round(0).IntPart())
	if overtime > split.OvertimeMinutes {
		overtime = split.OvertimeMinutes
	}
	base := night - overtime
	if base > split.BaseMinutes {
		base = split.BaseMinutes
	}
	return NightSplit{BaseMinutes: base, OvertimeMinutes: overtime}
}

// =============================================================================
// DERIVER - Date-level entry points over recorded shifts
// =============================================================================

// ShiftSource is the slice of HistoryStore the deriver needs.
type ShiftSource interface {
	ShiftsForDate(ctx context.Context, date time.Time) ([]Shift, error)
}

// Deriver resolves a date's tracked shifts into pay-bucket allocations.
// These are also the entry points exposed outward to the UI layer.
type Deriver struct {
	Shifts ShiftSource
}

func NewDeriver(shifts ShiftSource) *Deriver { return &Deriver{Shifts: shifts} }

// TrackedMinutes sums the recorded durations for one date.
func (d *Deriver) TrackedMinutes(ctx context.Context, date time.Time) (int, error) {
	shifts, err := d.Shifts.ShiftsForDate(ctx, date)
	if err != nil {
		return 0, &PersistenceError{Op: "load shifts", Cause: err}
	}
	total := 0
	for _, s := range shifts {
		total += s.DurationMinutes
	}
	return total, nil
}

// weekMinutes sums tracked minutes across the pay-period week of date.
func (d *Deriver) weekMinutes(ctx context.Context, date time.Time, startsOn time.Weekday) (int, error) {
	total := 0
	for _, day := range WeekDays(date, startsOn) {
		minutes, err := d.TrackedMinutes(ctx, day)
		if err != nil {
			return 0, err
		}
		total += minutes
	}
	return total, nil
}

// OvertimeSplitForDate derives the base/overtime split for a date from its
// tracked shifts. No shifts degrade to an all-zero split.
func (d *Deriver) OvertimeSplitForDate(ctx context.Context, date time.Time, settings AppSettings) (Split, error) {
	dayMinutes, err := d.TrackedMinutes(ctx, date)
	if err != nil {
		return Split{}, err
	}
	if dayMinutes == 0 {
		return Split{}, nil
	}

	weekTotal := 0
	if settings.Rules.Overtime.Enabled && settings.Rules.Overtime.Basis == BasisWeekly {
		weekTotal, err = d.weekMinutes(ctx, date, settings.Preferences.WeekStartsOn)
		if err != nil {
			return Split{}, err
		}
	}
	return SplitOvertime(dayMinutes, weekTotal, settings.Rules.Overtime), nil
}

// NightAllocationForDate derives the night-window minutes for a date,
// bucketed against the same overtime split.
func (d *Deriver) NightAllocationForDate(ctx context.Context, date time.Time, settings AppSettings) (NightSplit, error) {
	split, err := d.OvertimeSplitForDate(ctx, date, settings)
	if err != nil {
		return NightSplit{}, err
	}
	return d.nightForSplit(ctx, date, settings.Rules.Night, split)
}

// nightForSplit buckets the date's night-window overlap against an
// already-computed overtime split.
func (d *Deriver) nightForSplit(ctx context.Context, date time.Time, rule NightRule, split Split) (NightSplit, error) {
	shifts, err := d.Shifts.ShiftsForDate(ctx, date)
	if err != nil {
		return NightSplit{}, &PersistenceError{Op: "load shifts", Cause: err}
	}
	intervals := make([]ClockInterval, len(shifts))
	for i, s := range shifts {
		intervals[i] = s.ClockInterval()
	}
	return SplitNight(intervals, rule, split), nil
}

// AllocationForDate combines both derivations into one HourAllocation. The
// overtime split is computed once and fed to the night derivation, so a
// weekly basis reads the week's shifts a single time.
func (d *Deriver) AllocationForDate(ctx context.Context, date time.Time, settings AppSettings) (HourAllocation, error) {
	split, err := d.OvertimeSplitForDate(ctx, date, settings)
	if err != nil {
		return HourAllocation{}, err
	}
	night, err := d.nightForSplit(ctx, date, settings.Rules.Night, split)
	if err != nil {
		return HourAllocation{}, err
	}
	return HourAllocation{
		BaseMinutes:          split.BaseMinutes,
		OvertimeMinutes:      split.OvertimeMinutes,
		NightBaseMinutes:     night.BaseMinutes,
		NightOvertimeMinutes: night.OvertimeMinutes,
	}, nil
}
