/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures decoupling the engine types from the API contract. Money
  crosses this boundary as float64 rounded to two decimal places; inside
  the engine it composes unrounded. Dates are "YYYY-MM-DD" strings and
  timestamps RFC3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - factory: SettingsJSON, reused verbatim for the settings endpoints
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shiftpal/shift-engine/engine"
)

// =============================================================================
// TIMER
// =============================================================================

type BreakDTO struct {
	Start      string  `json:"start"`
	End        *string `json:"end,omitempty"`
	DurationMs int64   `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

type TimerStateDTO struct {
	Status         string     `json:"status"`
	StartedAt      string     `json:"started_at,omitempty"`
	ElapsedMs      int64      `json:"elapsed_ms"`
	CurrentBreakMs int64      `json:"current_break_ms"`
	TotalBreakMs   int64      `json:"total_break_ms"`
	Breaks         []BreakDTO `json:"breaks"`
}

type StopTimerRequest struct {
	IncludeBreaks *bool `json:"include_breaks,omitempty"`
}

type BreakNoteRequest struct {
	Note string `json:"note"`
}

type ShiftDTO struct {
	ID              string `json:"id"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
	BreakMinutes    int    `json:"break_minutes"`
	DurationText    string `json:"duration_text"`
}

func timerStateDTO(snap engine.TimerSnapshot, now time.Time) TimerStateDTO {
	dto := TimerStateDTO{
		Status:         string(snap.Status),
		ElapsedMs:      snap.Elapsed.Milliseconds(),
		CurrentBreakMs: snap.CurrentBreak.Milliseconds(),
		TotalBreakMs:   snap.TotalBreak.Milliseconds(),
		Breaks:         make([]BreakDTO, len(snap.Breaks)),
	}
	if !snap.StartedAt.IsZero() {
		dto.StartedAt = snap.StartedAt.Format(time.RFC3339)
	}
	for i, b := range snap.Breaks {
		bd := BreakDTO{
			Start:      b.Start.Format(time.RFC3339),
			DurationMs: b.Duration(now).Milliseconds(),
			Note:       b.Note,
		}
		if b.End != nil {
			end := b.End.Format(time.RFC3339)
			bd.End = &end
		}
		dto.Breaks[i] = bd
	}
	return dto
}

func shiftDTO(s engine.Shift) ShiftDTO {
	return ShiftDTO{
		ID:              s.ID,
		Start:           s.Start.Format(time.RFC3339),
		End:             s.End.Format(time.RFC3339),
		DurationMinutes: s.DurationMinutes,
		BreakMinutes:    s.BreakMinutes,
		DurationText:    s.DurationText,
	}
}

// =============================================================================
// PAY CALCULATION
// =============================================================================

type HourQuantityDTO struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// CalculateRequest mirrors engine.PayCalculationInput with wire-friendly
// types. Rate and hour text fields coerce to zero when malformed.
type CalculateRequest struct {
	Mode           string `json:"mode"` // "tracker" | "manual"
	Date           string `json:"date"` // "YYYY-MM-DD"
	HourlyRateID   string `json:"hourly_rate_id,omitempty"`
	OvertimeRateID string `json:"overtime_rate_id,omitempty"`

	HoursWorked    *HourQuantityDTO `json:"hours_worked,omitempty"`
	OvertimeWorked *HourQuantityDTO `json:"overtime_worked,omitempty"`

	NightBaseHours     *HourQuantityDTO `json:"night_base_hours,omitempty"`
	NightOvertimeHours *HourQuantityDTO `json:"night_overtime_hours,omitempty"`

	ManualBaseRate     *float64 `json:"manual_base_rate,omitempty"`
	ManualOvertimeRate *float64 `json:"manual_overtime_rate,omitempty"`

	DistanceKm *float64 `json:"distance_km,omitempty"`
}

type BreakdownDTO struct {
	Base       float64 `json:"base"`
	Overtime   float64 `json:"overtime"`
	Uplifts    float64 `json:"uplifts"`
	Allowances float64 `json:"allowances"`
	Gross      float64 `json:"gross"`
	Tax        float64 `json:"tax"`
	NI         float64 `json:"ni"`
	Total      float64 `json:"total"`
}

type AllocationDTO struct {
	BaseMinutes          int `json:"base_minutes"`
	OvertimeMinutes      int `json:"overtime_minutes"`
	NightBaseMinutes     int `json:"night_base_minutes"`
	NightOvertimeMinutes int `json:"night_overtime_minutes"`
}

type CalculationDTO struct {
	Breakdown    BreakdownDTO  `json:"breakdown"`
	Allocation   AllocationDTO `json:"allocation"`
	BaseRate     float64       `json:"base_rate"`
	OvertimeRate float64       `json:"overtime_rate"`
}

type PayHistoryEntryDTO struct {
	ID         string        `json:"id"`
	Date       string        `json:"date"`
	Mode       string        `json:"mode"`
	Breakdown  BreakdownDTO  `json:"breakdown"`
	Allocation AllocationDTO `json:"allocation"`
	CreatedAt  string        `json:"created_at"`
}

type SplitDTO struct {
	BaseMinutes     int `json:"base_minutes"`
	OvertimeMinutes int `json:"overtime_minutes"`
}

type NightSplitDTO struct {
	NightBaseMinutes     int `json:"night_base_minutes"`
	NightOvertimeMinutes int `json:"night_overtime_minutes"`
}

func breakdownDTO(b engine.PayBreakdown) BreakdownDTO {
	return BreakdownDTO{
		Base:       b.Base.Float64(),
		Overtime:   b.Overtime.Float64(),
		Uplifts:    b.Uplifts.Float64(),
		Allowances: b.Allowances.Float64(),
		Gross:      b.Gross.Float64(),
		Tax:        b.Tax.Float64(),
		NI:         b.NI.Float64(),
		Total:      b.Total.Float64(),
	}
}

func allocationDTO(a engine.HourAllocation) AllocationDTO {
	return AllocationDTO{
		BaseMinutes:          a.BaseMinutes,
		OvertimeMinutes:      a.OvertimeMinutes,
		NightBaseMinutes:     a.NightBaseMinutes,
		NightOvertimeMinutes: a.NightOvertimeMinutes,
	}
}

func calculationDTO(r *engine.Resolved) CalculationDTO {
	return CalculationDTO{
		Breakdown:    breakdownDTO(r.Breakdown),
		Allocation:   allocationDTO(r.Allocation),
		BaseRate:     r.Rates.Base.Float64(),
		OvertimeRate: r.Rates.Overtime.Float64(),
	}
}

func (r CalculateRequest) toInput() engine.PayCalculationInput {
	input := engine.PayCalculationInput{
		Mode:           engine.CalculationMode(r.Mode),
		HourlyRateID:   r.HourlyRateID,
		OvertimeRateID: r.OvertimeRateID,
	}
	if r.Mode != string(engine.ModeManual) {
		input.Mode = engine.ModeTracker
	}
	if date, err := time.Parse("2006-01-02", r.Date); err == nil {
		input.Date = date
	}
	if r.HoursWorked != nil {
		input.HoursWorked = engine.NewHourQuantity(r.HoursWorked.Hours, r.HoursWorked.Minutes)
	}
	if r.OvertimeWorked != nil {
		input.OvertimeWorked = engine.NewHourQuantity(r.OvertimeWorked.Hours, r.OvertimeWorked.Minutes)
	}
	if r.NightBaseHours != nil {
		q := engine.NewHourQuantity(r.NightBaseHours.Hours, r.NightBaseHours.Minutes)
		input.NightBaseHours = &q
	}
	if r.NightOvertimeHours != nil {
		q := engine.NewHourQuantity(r.NightOvertimeHours.Hours, r.NightOvertimeHours.Minutes)
		input.NightOvertimeHours = &q
	}
	if r.ManualBaseRate != nil {
		input.ManualBaseRate = engine.NewMoney(*r.ManualBaseRate).ClampZero()
	}
	if r.ManualOvertimeRate != nil {
		input.ManualOvertimeRate = engine.NewMoney(*r.ManualOvertimeRate).ClampZero()
	}
	if r.DistanceKm != nil && *r.DistanceKm > 0 {
		input.DistanceKm = decimal.NewFromFloat(*r.DistanceKm)
	}
	return input
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
