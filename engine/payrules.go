/*
payrules.go - Gross pay composition

PURPOSE:
  Computes the gross side of a pay breakdown from a resolved hour
  allocation, the effective rates, and the rule stack. Composition order is
  fixed:

    1. base       = base hours * base rate
    2. overtime   = overtime hours * effective overtime rate
    3. night      = night hours * per-hour uplift (per bucket rate)
    4. weekend    = total hours * per-hour uplift, on configured weekdays
    5. uplifts    = night + weekend
    6. allowances = per-shift + per-hour + per-km items
    7. gross      = base + overtime + uplifts + allowances

  No intermediate rounding: money composes unrounded and only the display
  boundary rounds to 2dp, avoiding cumulative drift. Every component is
  clamped non-negative.

SEE ALSO:
  - deductions.go: Turns gross into net
  - rules.go: Modifier resolution
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAY RULE ENGINE
// =============================================================================

// GrossInput is everything the gross computation depends on, passed in
// explicitly; the engine reads no ambient state.
type GrossInput struct {
	Date       time.Time
	Allocation HourAllocation
	BaseRate   Money
	// OvertimeRate is the caller-resolved fallback used when the overtime
	// rule carries no modifier; zero means "fall back to BaseRate".
	OvertimeRate Money
	Rules        PayRules
	DistanceKm   decimal.Decimal
}

// GrossResult carries the composed components plus the effective overtime
// rate actually used, for snapshotting into saved calculations.
type GrossResult struct {
	Base         Money
	Overtime     Money
	Uplifts      Money
	Allowances   Money
	Gross        Money
	OvertimeRate Money
}

// ComputeGross applies the rule stack in the fixed order above.
func ComputeGross(in GrossInput) GrossResult {
	baseRate := in.BaseRate.ClampZero()
	overtimeRate := resolveOvertimeRate(baseRate, in.OvertimeRate, in.Rules.Overtime)

	base := baseRate.MulHours(in.Allocation.BaseMinutes).ClampZero()
	overtime := overtimeRate.MulHours(in.Allocation.OvertimeMinutes).ClampZero()

	night := nightUplift(in.Allocation, baseRate, overtimeRate, in.Rules.Night)
	weekend := weekendUplift(in.Date, in.Allocation, baseRate, in.Rules.Weekend)
	uplifts := night.Add(weekend)

	allowances := sumAllowances(in.Rules.Allowances, in.Allocation, in.DistanceKm)

	return GrossResult{
		Base:         base,
		Overtime:     overtime,
		Uplifts:      uplifts,
		Allowances:   allowances,
		Gross:        base.Add(overtime).Add(uplifts).Add(allowances),
		OvertimeRate: overtimeRate,
	}
}

// resolveOvertimeRate picks the effective overtime rate: the tier modifier
// when the rule carries one, else the explicit rate, else the base rate.
func resolveOvertimeRate(base, explicit Money, rule OvertimeRule) Money {
	if rule.Enabled && !rule.Modifier.IsZero() {
		return rule.Modifier.Rate(base)
	}
	if explicit.IsPositive() {
		return explicit
	}
	return base
}

// nightUplift pays the resolved per-hour uplift on night minutes, using
// each bucket's own rate for multiplier-style rules.
func nightUplift(alloc HourAllocation, baseRate, overtimeRate Money, rule NightRule) Money {
	if !rule.Enabled || rule.Modifier.IsZero() {
		return ZeroMoney()
	}
	basePart := rule.Modifier.Uplift(baseRate).MulHours(alloc.NightBaseMinutes)
	overtimePart := rule.Modifier.Uplift(overtimeRate).MulHours(alloc.NightOvertimeMinutes)
	return basePart.Add(overtimePart).ClampZero()
}

// weekendUplift pays the uplift over the full day's hours when the
// calculation date falls on a configured weekend day.
func weekendUplift(date time.Time, alloc HourAllocation, baseRate Money, rule WeekendRule) Money {
	if !rule.AppliesTo(date) || rule.Modifier.IsZero() {
		return ZeroMoney()
	}
	return rule.Modifier.Uplift(baseRate).MulHours(alloc.TotalMinutes()).ClampZero()
}

func sumAllowances(items []AllowanceItem, alloc HourAllocation, distanceKm decimal.Decimal) Money {
	total := ZeroMoney()
	for _, item := range items {
		value := item.Value.ClampZero()
		switch item.Unit {
		case PerShift:
			total = total.Add(value)
		case PerHour:
			total = total.Add(value.MulHours(alloc.TotalMinutes()))
		case PerKm:
			if distanceKm.IsPositive() {
				total = total.Add(value.Mul(distanceKm))
			}
		}
	}
	return total.ClampZero()
}
