/*
Package factory converts persisted settings JSON into engine types.

PURPOSE:
  Settings written by older app versions used a duck-typed rule shape
  ({type: "percentage"|"fixed", value: n}); current versions write the
  structured shape ({mode: "multiplier"|"fixed", multiplier/uplift: n}).
  This package normalizes both eras into the engine's canonical Modifier
  variant exactly once, at the settings boundary. The engine never branches
  on "which era is this record".

LEGACY MAPPING:
  {type: "percentage", value: v} -> Multiplier(v / 100)
  {type: "fixed",      value: v} -> FixedUplift(v)

  For the overtime tier the legacy percentage is the full multiplier in
  percent (150 -> rate * 1.5); for uplift rules it is the uplifted fraction
  (20 -> rate * 0.2 on top). Both reduce to Multiplier(v/100) because the
  tier resolves Multiplier as a rate factor while uplift rules resolve it
  as a fraction.

DEFAULTING:
  Missing or malformed numeric fields coerce to zero, never error; a rule
  with no usable shape simply carries no modifier.

SEE ALSO:
  - engine/rules.go: Canonical rule records and Modifier resolution
  - store/sqlite: Stores and reloads the JSON handled here
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shiftpal/shift-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES - Accepts both legacy and canonical shapes
// =============================================================================

// ModifierJSON accepts both rule-shape eras. Canonical fields win when both
// are present.
type ModifierJSON struct {
	// Canonical shape
	Mode       string   `json:"mode,omitempty"` // "multiplier" | "fixed"
	Multiplier *float64 `json:"multiplier,omitempty"`
	Uplift     *float64 `json:"uplift,omitempty"`

	// Legacy shape
	Type  string   `json:"type,omitempty"` // "percentage" | "fixed"
	Value *float64 `json:"value,omitempty"`
}

type OvertimeJSON struct {
	Enabled        bool    `json:"enabled"`
	Basis          string  `json:"basis,omitempty"` // "daily" | "weekly"
	ThresholdHours float64 `json:"threshold_hours"`
	ModifierJSON
}

type NightJSON struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"` // "22:00"
	End     string `json:"end"`   // "06:00"
	ModifierJSON
}

type WeekendJSON struct {
	Enabled bool     `json:"enabled"`
	Days    []string `json:"days,omitempty"` // "saturday", "sunday", ...
	ModifierJSON
}

type TaxJSON struct {
	Enabled           bool    `json:"enabled"`
	Percentage        float64 `json:"percentage"`
	PersonalAllowance float64 `json:"personal_allowance"`
}

type NIJSON struct {
	Enabled    bool    `json:"enabled"`
	Percentage float64 `json:"percentage"`
	Threshold  float64 `json:"threshold"`
}

type AllowanceJSON struct {
	Label string  `json:"label"`
	Unit  string  `json:"unit"` // "per_shift" | "per_hour" | "per_km"
	Value float64 `json:"value"`
}

type RulesJSON struct {
	Overtime   *OvertimeJSON   `json:"overtime,omitempty"`
	Night      *NightJSON      `json:"night,omitempty"`
	Weekend    *WeekendJSON    `json:"weekend,omitempty"`
	Tax        *TaxJSON        `json:"tax,omitempty"`
	NI         *NIJSON         `json:"ni,omitempty"`
	Allowances []AllowanceJSON `json:"allowances,omitempty"`
}

type PreferencesJSON struct {
	WeekStartsOn            string `json:"week_starts_on,omitempty"` // "monday", ...
	IncludeBreaksInDuration bool   `json:"include_breaks_in_duration"`
}

type NotificationsJSON struct {
	Enabled        bool `json:"enabled"`
	ReminderDelayS int  `json:"reminder_delay_seconds,omitempty"`
}

type RateJSON struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Kind  string  `json:"kind,omitempty"` // "base" | "overtime" | "premium"
}

// SettingsJSON is the full persisted settings document.
type SettingsJSON struct {
	Preferences   PreferencesJSON   `json:"preferences"`
	Rules         RulesJSON         `json:"pay_rules"`
	Rates         []RateJSON        `json:"rates,omitempty"`
	Notifications NotificationsJSON `json:"notifications"`
}

// =============================================================================
// SETTINGS FACTORY
// =============================================================================

type SettingsFactory struct{}

func NewSettingsFactory() *SettingsFactory { return &SettingsFactory{} }

// ParseSettings parses a settings JSON document into normalized engine
// settings.
func (f *SettingsFactory) ParseSettings(jsonStr string) (engine.AppSettings, error) {
	var sj SettingsJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return engine.AppSettings{}, fmt.Errorf("failed to parse settings JSON: %w", err)
	}
	return f.FromJSON(sj), nil
}

// FromJSON normalizes a parsed settings document.
func (f *SettingsFactory) FromJSON(sj SettingsJSON) engine.AppSettings {
	return engine.AppSettings{
		Preferences: engine.Preferences{
			WeekStartsOn:            parseWeekday(sj.Preferences.WeekStartsOn, time.Monday),
			IncludeBreaksInDuration: sj.Preferences.IncludeBreaksInDuration,
		},
		Rules: NormalizeRules(sj.Rules),
		Rates: parseRates(sj.Rates),
		Notifications: engine.NotificationPrefs{
			Enabled:        sj.Notifications.Enabled,
			ReminderDelayS: sj.Notifications.ReminderDelayS,
		},
	}
}

// ToJSON converts normalized settings back to the canonical JSON document
// (legacy shapes are not written back).
func (f *SettingsFactory) ToJSON(s engine.AppSettings) SettingsJSON {
	sj := SettingsJSON{
		Preferences: PreferencesJSON{
			WeekStartsOn:            strings.ToLower(s.Preferences.WeekStartsOn.String()),
			IncludeBreaksInDuration: s.Preferences.IncludeBreaksInDuration,
		},
		Notifications: NotificationsJSON{
			Enabled:        s.Notifications.Enabled,
			ReminderDelayS: s.Notifications.ReminderDelayS,
		},
	}

	threshold, _ := s.Rules.Overtime.ThresholdHours.Float64()
	sj.Rules.Overtime = &OvertimeJSON{
		Enabled:        s.Rules.Overtime.Enabled,
		Basis:          string(s.Rules.Overtime.Basis),
		ThresholdHours: threshold,
		ModifierJSON:   modifierJSON(s.Rules.Overtime.Modifier),
	}
	sj.Rules.Night = &NightJSON{
		Enabled:      s.Rules.Night.Enabled,
		Start:        s.Rules.Night.Window.Start.String(),
		End:          s.Rules.Night.Window.End.String(),
		ModifierJSON: modifierJSON(s.Rules.Night.Modifier),
	}
	weekendDays := make([]string, len(s.Rules.Weekend.Days))
	for i, d := range s.Rules.Weekend.Days {
		weekendDays[i] = strings.ToLower(d.String())
	}
	sj.Rules.Weekend = &WeekendJSON{
		Enabled:      s.Rules.Weekend.Enabled,
		Days:         weekendDays,
		ModifierJSON: modifierJSON(s.Rules.Weekend.Modifier),
	}
	taxPct, _ := s.Rules.Tax.Percent.Float64()
	sj.Rules.Tax = &TaxJSON{
		Enabled:           s.Rules.Tax.Enabled,
		Percentage:        taxPct,
		PersonalAllowance: s.Rules.Tax.PersonalAllowance.Float64(),
	}
	niPct, _ := s.Rules.NI.Percent.Float64()
	sj.Rules.NI = &NIJSON{
		Enabled:    s.Rules.NI.Enabled,
		Percentage: niPct,
		Threshold:  s.Rules.NI.Threshold.Float64(),
	}
	for _, a := range s.Rules.Allowances {
		sj.Rules.Allowances = append(sj.Rules.Allowances, AllowanceJSON{
			Label: a.Label,
			Unit:  string(a.Unit),
			Value: a.Value.Float64(),
		})
	}
	for _, r := range s.Rates {
		sj.Rates = append(sj.Rates, RateJSON{
			ID:    r.ID,
			Label: r.Label,
			Value: r.Value.Float64(),
			Kind:  string(r.Kind),
		})
	}
	return sj
}

func modifierJSON(m engine.Modifier) ModifierJSON {
	v, _ := m.Amount.Float64()
	switch m.Kind {
	case engine.ModifierMultiplier:
		return ModifierJSON{Mode: "multiplier", Multiplier: &v}
	case engine.ModifierFixedUplift:
		return ModifierJSON{Mode: "fixed", Uplift: &v}
	default:
		return ModifierJSON{}
	}
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// NormalizeRules converts a rules document, legacy or canonical, into the
// engine's rule stack.
func NormalizeRules(rj RulesJSON) engine.PayRules {
	rules := engine.PayRules{}

	if rj.Overtime != nil {
		rules.Overtime = engine.OvertimeRule{
			Enabled:        rj.Overtime.Enabled,
			Basis:          parseBasis(rj.Overtime.Basis),
			ThresholdHours: decimal.NewFromFloat(rj.Overtime.ThresholdHours),
			Modifier:       normalizeModifier(rj.Overtime.ModifierJSON),
		}
	}
	if rj.Night != nil {
		rules.Night = engine.NightRule{
			Enabled: rj.Night.Enabled,
			Window: engine.ClockWindow{
				Start: engine.ParseClockTime(rj.Night.Start),
				End:   engine.ParseClockTime(rj.Night.End),
			},
			Modifier: normalizeModifier(rj.Night.ModifierJSON),
		}
	}
	if rj.Weekend != nil {
		days := make([]time.Weekday, 0, len(rj.Weekend.Days))
		for _, d := range rj.Weekend.Days {
			days = append(days, parseWeekday(d, time.Saturday))
		}
		if len(days) == 0 {
			days = []time.Weekday{time.Saturday, time.Sunday}
		}
		rules.Weekend = engine.WeekendRule{
			Enabled:  rj.Weekend.Enabled,
			Days:     days,
			Modifier: normalizeModifier(rj.Weekend.ModifierJSON),
		}
	}
	if rj.Tax != nil {
		rules.Tax = engine.TaxRule{
			Enabled:           rj.Tax.Enabled,
			Percent:           clampNonNegative(rj.Tax.Percentage),
			PersonalAllowance: engine.NewMoney(rj.Tax.PersonalAllowance).ClampZero(),
		}
	}
	if rj.NI != nil {
		rules.NI = engine.NIRule{
			Enabled:   rj.NI.Enabled,
			Percent:   clampNonNegative(rj.NI.Percentage),
			Threshold: engine.NewMoney(rj.NI.Threshold).ClampZero(),
		}
	}
	for _, a := range rj.Allowances {
		rules.Allowances = append(rules.Allowances, engine.AllowanceItem{
			Label: a.Label,
			Unit:  parseAllowanceUnit(a.Unit),
			Value: engine.NewMoney(a.Value).ClampZero(),
		})
	}
	return rules
}

// normalizeModifier reduces either era to the canonical variant. The
// canonical shape wins when both are present.
func normalizeModifier(mj ModifierJSON) engine.Modifier {
	switch mj.Mode {
	case "multiplier":
		if mj.Multiplier != nil {
			return engine.Multiplier(*mj.Multiplier)
		}
	case "fixed":
		if mj.Uplift != nil {
			return engine.FixedUplift(*mj.Uplift)
		}
	}
	switch mj.Type {
	case "percentage":
		if mj.Value != nil {
			return engine.Multiplier(*mj.Value / 100)
		}
	case "fixed":
		if mj.Value != nil {
			return engine.FixedUplift(*mj.Value)
		}
	}
	return engine.Modifier{}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseBasis(s string) engine.OvertimeBasis {
	if strings.EqualFold(s, "weekly") {
		return engine.BasisWeekly
	}
	return engine.BasisDaily
}

func parseAllowanceUnit(s string) engine.AllowanceUnit {
	switch strings.ToLower(s) {
	case "per_hour", "perhour":
		return engine.PerHour
	case "per_km", "perkm":
		return engine.PerKm
	default:
		return engine.PerShift
	}
}

func parseWeekday(s string, fallback time.Weekday) time.Weekday {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday":
		return time.Sunday
	case "monday":
		return time.Monday
	case "tuesday":
		return time.Tuesday
	case "wednesday":
		return time.Wednesday
	case "thursday":
		return time.Thursday
	case "friday":
		return time.Friday
	case "saturday":
		return time.Saturday
	default:
		return fallback
	}
}

func parseRates(rates []RateJSON) []engine.PayRate {
	out := make([]engine.PayRate, 0, len(rates))
	for _, r := range rates {
		kind := engine.RateKind(r.Kind)
		switch kind {
		case engine.RateBase, engine.RateOvertime, engine.RatePremium:
		default:
			kind = engine.RateBase
		}
		out = append(out, engine.PayRate{
			ID:    r.ID,
			Label: r.Label,
			Value: engine.NewMoney(r.Value).ClampZero(),
			Kind:  kind,
		})
	}
	return out
}

func clampNonNegative(v float64) decimal.Decimal {
	if v < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
