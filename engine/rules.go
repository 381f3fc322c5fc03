/*
rules.go - Pay rule records and the canonical modifier shape

PURPOSE:
  Defines the rule stack a pay calculation runs against: tiered overtime,
  night-hours uplift, weekend uplift, flat allowances, and tax/NI-style
  deductions. Settings stored by older app versions used a duck-typed
  {type, value} shape; the factory package normalizes both eras into the
  single Modifier variant defined here, so the engine never branches on
  "which era is this record".

MODIFIER RESOLUTION:
  Overtime tier:   Multiplier(x) -> rate = base * x
                   FixedUplift(x) -> rate = base + x
  Night/weekend:   Multiplier(x) -> uplift = rate * x per hour
                   FixedUplift(x) -> uplift = x per hour

SEE ALSO:
  - payrules.go: Applies these rules in a fixed order
  - deductions.go: Tax and NI rules
  - factory package: Legacy shape normalization at the settings boundary
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MODIFIER - Canonical tagged variant for rate adjustments
// =============================================================================

type ModifierKind string

const (
	ModifierMultiplier  ModifierKind = "multiplier"
	ModifierFixedUplift ModifierKind = "fixed_uplift"
)

type Modifier struct {
	Kind   ModifierKind
	Amount decimal.Decimal
}

func Multiplier(x float64) Modifier {
	return Modifier{Kind: ModifierMultiplier, Amount: decimal.NewFromFloat(x)}
}

func FixedUplift(x float64) Modifier {
	return Modifier{Kind: ModifierFixedUplift, Amount: decimal.NewFromFloat(x)}
}

func (m Modifier) IsZero() bool { return m.Kind == "" }

// Rate derives an effective per-hour rate from a base rate: the overtime
// tier resolution (base*multiplier or base+uplift).
func (m Modifier) Rate(base Money) Money {
	switch m.Kind {
	case ModifierMultiplier:
		return base.Mul(m.Amount).ClampZero()
	case ModifierFixedUplift:
		return base.Add(Money{Value: m.Amount}).ClampZero()
	default:
		return base
	}
}

// Uplift resolves the per-hour uplift paid on top of a rate. For uplift
// rules (night, weekend) a multiplier is the uplifted fraction of the rate:
// Multiplier(0.2) pays rate*0.2 per hour on top (legacy percentage 20).
func (m Modifier) Uplift(rate Money) Money {
	switch m.Kind {
	case ModifierMultiplier:
		return rate.Mul(m.Amount).ClampZero()
	case ModifierFixedUplift:
		return Money{Value: m.Amount}.ClampZero()
	default:
		return ZeroMoney()
	}
}

// =============================================================================
// RULE RECORDS
// =============================================================================

type OvertimeBasis string

const (
	BasisDaily  OvertimeBasis = "daily"
	BasisWeekly OvertimeBasis = "weekly"
)

// OvertimeRule splits worked time at a threshold. Only one basis is active
// at a time; a weekly basis compares the cumulative week total.
type OvertimeRule struct {
	Enabled        bool
	Basis          OvertimeBasis
	ThresholdHours decimal.Decimal
	Modifier       Modifier
}

func (r OvertimeRule) ThresholdMinutes() int {
	return int(r.ThresholdHours.Mul(decimal.NewFromInt(60)).IntPart())
}

// NightRule pays an uplift on minutes overlapping the configured window.
type NightRule struct {
	Enabled  bool
	Window   ClockWindow
	Modifier Modifier
}

// WeekendRule pays an uplift over all hours on configured weekdays.
type WeekendRule struct {
	Enabled  bool
	Days     []time.Weekday
	Modifier Modifier
}

func (r WeekendRule) AppliesTo(date time.Time) bool {
	if !r.Enabled {
		return false
	}
	wd := date.Weekday()
	for _, d := range r.Days {
		if d == wd {
			return true
		}
	}
	return false
}

type AllowanceUnit string

const (
	PerShift AllowanceUnit = "per_shift"
	PerHour  AllowanceUnit = "per_hour"
	PerKm    AllowanceUnit = "per_km"
)

// AllowanceItem is a flat or per-unit addition to gross pay.
type AllowanceItem struct {
	Label string
	Unit  AllowanceUnit
	Value Money
}

// TaxRule deducts a percentage of gross above a personal allowance.
type TaxRule struct {
	Enabled           bool
	Percent           decimal.Decimal
	PersonalAllowance Money
}

// NIRule deducts a percentage of gross above a threshold. The threshold is
// documented as a weekly figure but compared against each calculation's
// gross individually; weekly aggregation is deliberately not performed.
type NIRule struct {
	Enabled   bool
	Percent   decimal.Decimal
	Threshold Money
}

// PayRules is the full rule stack for one calculation.
type PayRules struct {
	Overtime   OvertimeRule
	Night      NightRule
	Weekend    WeekendRule
	Tax        TaxRule
	NI         NIRule
	Allowances []AllowanceItem
}

// =============================================================================
// SETTINGS - Everything the orchestrator resolves against
// =============================================================================

// Preferences are tracker-level options outside the rule stack.
type Preferences struct {
	WeekStartsOn            time.Weekday
	IncludeBreaksInDuration bool
}

// NotificationPrefs are carried through the settings store for the outer
// app; the engine itself never reads them.
type NotificationPrefs struct {
	Enabled        bool
	ReminderDelayS int
}

// AppSettings is the normalized settings snapshot pushed by the settings
// store. Rules arrive already converted to canonical shapes.
type AppSettings struct {
	Preferences   Preferences
	Rules         PayRules
	Rates         []PayRate
	Notifications NotificationPrefs
}

// RateByID resolves a saved rate; a missing ID is an expected state and
// returns false rather than an error.
func (s AppSettings) RateByID(id string) (PayRate, bool) {
	if id == "" {
		return PayRate{}, false
	}
	for _, r := range s.Rates {
		if r.ID == id {
			return r, true
		}
	}
	return PayRate{}, false
}
