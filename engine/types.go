/*
Package engine provides the core shift-tracking and pay-computation engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking work
  shifts (a timer state machine with break bookkeeping) and for turning
  tracked or manually entered hours into a pay breakdown: base pay, tiered
  overtime, night and weekend uplifts, flat allowances, and tax/NI-style
  deductions.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount backed by decimal.Decimal
  - HourQuantity: A non-negative (hours, minutes) pair
  - TimerSession / Break / Shift: Timer state and its immutable output
  - HourAllocation: Worked time split into base/overtime/night buckets
  - PayBreakdown: The computed money components for one calculation

DESIGN PRINCIPLES:
  1. Precision: All money math uses decimal.Decimal; rounding happens only
     at the display boundary, never during composition
  2. Coercion over failure: Malformed numeric input becomes zero so a
     calculation can always be shown
  3. Immutability: A Shift or saved calculation is never mutated after
     creation
  4. Pure computation: Engines are functions of their inputs; no ambient
     state, no I/O

SEE ALSO:
  - rules.go: Pay rule records and the canonical modifier shape
  - timer.go: Timer state machine
  - payrules.go / deductions.go: Gross and net computation
  - orchestrator.go: End-to-end calculation resolution
*/
package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount (unit-less; formatting is out of scope)
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money { return Money{Value: decimal.NewFromFloat(value)} }
func ZeroMoney() Money             { return Money{Value: decimal.Zero} }

// ParseMoney converts numeric text to Money. Invalid text coerces to zero
// rather than failing: the engine always produces a result to show.
func ParseMoney(s string) Money {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money            { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money            { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(s decimal.Decimal) Money  { return Money{Value: m.Value.Mul(s)} }
func (m Money) IsZero() bool                 { return m.Value.IsZero() }
func (m Money) IsNegative() bool             { return m.Value.IsNegative() }
func (m Money) IsPositive() bool             { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool           { return m.Value.Equal(o.Value) }

// ClampZero floors negative amounts at zero. No rule may produce a negative
// contribution, so every composed component passes through here.
func (m Money) ClampZero() Money {
	if m.Value.IsNegative() {
		return ZeroMoney()
	}
	return m
}

// Round rounds to the smallest currency unit. Display boundary only.
func (m Money) Round() Money      { return Money{Value: m.Value.Round(2)} }
func (m Money) Float64() float64  { f, _ := m.Value.Round(2).Float64(); return f }
func (m Money) String() string    { return m.Value.Round(2).StringFixed(2) }

// MulHours multiplies a per-hour amount by a duration expressed in minutes.
func (m Money) MulHours(minutes int) Money {
	return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(minutes))).Div(decimal.NewFromInt(60))}
}

// =============================================================================
// HOUR QUANTITY - Non-negative (hours, minutes) pair
// =============================================================================

// HourQuantity is a normalized hours-and-minutes pair. The canonical value
// is TotalMinutes(); negative inputs clamp to zero on construction.
type HourQuantity struct {
	Hours   int
	Minutes int
}

func NewHourQuantity(hours, minutes int) HourQuantity {
	if hours < 0 {
		hours = 0
	}
	if minutes < 0 {
		minutes = 0
	}
	return HourQuantity{Hours: hours + minutes/60, Minutes: minutes % 60}
}

func HourQuantityFromMinutes(total int) HourQuantity {
	if total < 0 {
		total = 0
	}
	return HourQuantity{Hours: total / 60, Minutes: total % 60}
}

// ParseHourQuantity coerces hour/minute text fields into a quantity.
// Malformed text becomes zero, matching the engine-wide coercion policy.
func ParseHourQuantity(hoursText, minutesText string) HourQuantity {
	h, err := strconv.Atoi(strings.TrimSpace(hoursText))
	if err != nil {
		h = 0
	}
	m, err := strconv.Atoi(strings.TrimSpace(minutesText))
	if err != nil {
		m = 0
	}
	return NewHourQuantity(h, m)
}

func (q HourQuantity) TotalMinutes() int { return q.Hours*60 + q.Minutes }
func (q HourQuantity) IsZero() bool      { return q.Hours == 0 && q.Minutes == 0 }

func (q HourQuantity) String() string {
	return fmt.Sprintf("%dh %dm", q.Hours, q.Minutes)
}

// =============================================================================
// PAY RATES
// =============================================================================

type RateKind string

const (
	RateBase     RateKind = "base"
	RateOvertime RateKind = "overtime"
	RatePremium  RateKind = "premium"
)

// PayRate is a saved hourly rate. Calculations reference rates by ID; a
// dangling or absent ID is a valid state (manual entry covers it).
type PayRate struct {
	ID    string
	Label string
	Value Money
	Kind  RateKind
}

// =============================================================================
// TIMER SESSION - Live timer state
// =============================================================================

type SessionStatus string

const (
	StatusIdle    SessionStatus = "idle"
	StatusRunning SessionStatus = "running"
	StatusPaused  SessionStatus = "paused"
)

// Break is one pause interval within a running session. End is nil while the
// break is still open; only the last break in a ledger may be open.
type Break struct {
	Start time.Time
	End   *time.Time
	Note  string
}

// Duration returns the break length, evaluating an open break against now.
func (b Break) Duration(now time.Time) time.Duration {
	end := now
	if b.End != nil {
		end = *b.End
	}
	d := end.Sub(b.Start)
	if d < 0 {
		return 0
	}
	return d
}

func (b Break) IsOpen() bool { return b.End == nil }

// TimerSession is the single mutable record owned by the state machine.
// Durability lives in the persisted absolute timestamps, never in derived
// durations: elapsed time is always recomputable from StartedAt + Breaks.
type TimerSession struct {
	Status    SessionStatus
	StartedAt time.Time
	Breaks    []Break
}

// =============================================================================
// SHIFT - Immutable output of a stopped timer
// =============================================================================

type Shift struct {
	ID              string
	Start           time.Time
	End             time.Time
	DurationMinutes int
	BreakMinutes    int
	DurationText    string
}

// ClockInterval returns the shift's start/end as clock times for night
// window overlap math.
func (s Shift) ClockInterval() ClockInterval {
	return ClockInterval{
		Start: ClockTimeOf(s.Start),
		End:   ClockTimeOf(s.End),
	}
}

// =============================================================================
// HOUR ALLOCATION - Worked time split into pay buckets
// =============================================================================

type HourAllocation struct {
	BaseMinutes          int
	OvertimeMinutes      int
	NightBaseMinutes     int
	NightOvertimeMinutes int
}

func (a HourAllocation) TotalMinutes() int { return a.BaseMinutes + a.OvertimeMinutes }

// =============================================================================
// CALCULATION INPUT / OUTPUT
// =============================================================================

type CalculationMode string

const (
	ModeTracker CalculationMode = "tracker"
	ModeManual  CalculationMode = "manual"
)

// PayCalculationInput carries everything the orchestrator needs to resolve
// hours and rates for one calculation. Zero-valued optional fields mean
// "not supplied".
type PayCalculationInput struct {
	Mode           CalculationMode
	Date           time.Time
	HourlyRateID   string
	OvertimeRateID string

	HoursWorked    HourQuantity
	OvertimeWorked HourQuantity

	NightBaseHours     *HourQuantity
	NightOvertimeHours *HourQuantity

	ManualBaseRate     Money
	ManualOvertimeRate Money

	// DistanceKm feeds per-km allowances; absent defaults to zero.
	DistanceKm decimal.Decimal
}

// PayBreakdown is the money result of one calculation.
//
// INVARIANTS:
//   Gross = Base + Overtime + Uplifts + Allowances
//   Total = Gross - Tax - NI
// All components are non-negative; Total may be below Gross by design.
type PayBreakdown struct {
	Base       Money
	Overtime   Money
	Uplifts    Money
	Allowances Money
	Gross      Money
	Tax        Money
	NI         Money
	Total      Money
}

// ResolvedRates records the effective per-hour rates a breakdown was
// computed with, after manual overrides and overtime tier derivation.
type ResolvedRates struct {
	Base     Money
	Overtime Money
}

// PayCalculationEntry is an immutable saved calculation. Created only on an
// explicit save; later rule or rate changes never alter it.
type PayCalculationEntry struct {
	ID           string
	Input        PayCalculationInput
	Pay          PayBreakdown
	RateSnapshot ResolvedRates
	CalcSnapshot HourAllocation
	CreatedAt    time.Time
}
