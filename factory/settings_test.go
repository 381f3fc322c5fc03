package factory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftpal/shift-engine/engine"
	"github.com/shiftpal/shift-engine/factory"
)

// =============================================================================
// LEGACY SHAPE NORMALIZATION TESTS
// =============================================================================

func TestParseSettings_LegacyPercentageOvertime(t *testing.T) {
	// GIVEN: An old-era document with {type: "percentage", value: 150}
	// WHEN: Parsing
	// THEN: The overtime tier carries Multiplier(1.5)

	f := factory.NewSettingsFactory()
	settings, err := f.ParseSettings(`{
		"pay_rules": {
			"overtime": {
				"enabled": true,
				"basis": "daily",
				"threshold_hours": 8,
				"type": "percentage",
				"value": 150
			}
		}
	}`)
	require.NoError(t, err)

	mod := settings.Rules.Overtime.Modifier
	assert.Equal(t, engine.ModifierMultiplier, mod.Kind)
	assert.True(t, mod.Amount.Equal(decimal.NewFromFloat(1.5)), "expected 1.5, got %v", mod.Amount)
}

func TestParseSettings_LegacyPercentageUplift(t *testing.T) {
	// Legacy percentage 20 on a night rule means rate*0.2 paid on top.
	f := factory.NewSettingsFactory()
	settings, err := f.ParseSettings(`{
		"pay_rules": {
			"night": {
				"enabled": true,
				"start": "22:00",
				"end": "06:00",
				"type": "percentage",
				"value": 20
			}
		}
	}`)
	require.NoError(t, err)

	mod := settings.Rules.Night.Modifier
	assert.Equal(t, engine.ModifierMultiplier, mod.Kind)

	uplift := mod.Uplift(engine.NewMoney(10))
	assert.Equal(t, 2.00, uplift.Float64())
}

func TestParseSettings_LegacyFixed(t *testing.T) {
	f := factory.NewSettingsFactory()
	settings, err := f.ParseSettings(`{
		"pay_rules": {
			"night": {"enabled": true, "start": "22:00", "end": "06:00", "type": "fixed", "value": 1.5}
		}
	}`)
	require.NoError(t, err)

	mod := settings.Rules.Night.Modifier
	assert.Equal(t, engine.ModifierFixedUplift, mod.Kind)
	assert.Equal(t, 1.50, mod.Uplift(engine.NewMoney(10)).Float64())
}

func TestParseSettings_CanonicalShapeWinsOverLegacy(t *testing.T) {
	// GIVEN: A document carrying both eras after an incomplete migration
	// THEN: The canonical fields win

	f := factory.NewSettingsFactory()
	settings, err := f.ParseSettings(`{
		"pay_rules": {
			"overtime": {
				"enabled": true,
				"threshold_hours": 8,
				"mode": "multiplier",
				"multiplier": 1.25,
				"type": "percentage",
				"value": 200
			}
		}
	}`)
	require.NoError(t, err)

	mod := settings.Rules.Overtime.Modifier
	assert.Equal(t, engine.ModifierMultiplier, mod.Kind)
	assert.True(t, mod.Amount.Equal(decimal.NewFromFloat(1.25)))
}

func TestParseSettings_NoUsableShape_NoModifier(t *testing.T) {
	f := factory.NewSettingsFactory()
	settings, err := f.ParseSettings(`{
		"pay_rules": {
			"overtime": {"enabled": true, "threshold_hours": 8, "type": "unknown"}
		}
	}`)
	require.NoError(t, err)
	assert.True(t, settings.Rules.Overtime.Modifier.IsZero())
}

// =============================================================================
// DEFAULTING AND COERCION TESTS
// =============================================================================

func TestParseSettings_MalformedJSON_Error(t *testing.T) {
	f := factory.NewSettingsFactory()
	_, err := f.ParseSettings(`{not json`)
	assert.Error(t, err)
}

func TestParseSettings_NegativeValuesClampToZero(t *testing.T) {
	f := factory.NewSettingsFactory()
	settings, err := f.ParseSettings(`{
		"pay_rules": {
			"tax": {"enabled": true, "percentage": -20, "personal_allowance": -100},
			"allowances": [{"label": "meal", "unit": "per_shift", "value": -5}]
		},
		"rates": [{"id": "r1", "label": "Standard", "value": -12}]
	}`)
	require.NoError(t, err)

	assert.True(t, settings.Rules.Tax.Percent.IsZero())
	assert.True(t, settings.Rules.Tax.PersonalAllowance.IsZero())
	assert.True(t, settings.Rules.Allowances[0].Value.IsZero())
	assert.True(t, settings.Rates[0].Value.IsZero())
}

func TestParseSettings_WeekStartDefaultsToMonday(t *testing.T) {
	f := factory.NewSettingsFactory()
	settings, err := f.ParseSettings(`{}`)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, settings.Preferences.WeekStartsOn)

	settings, err = f.ParseSettings(`{"preferences": {"week_starts_on": "sunday"}}`)
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, settings.Preferences.WeekStartsOn)
}

func TestParseSettings_WeekendDaysDefaultToSatSun(t *testing.T) {
	f := factory.NewSettingsFactory()
	settings, err := f.ParseSettings(`{
		"pay_rules": {"weekend": {"enabled": true, "mode": "multiplier", "multiplier": 0.25}}
	}`)
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, settings.Rules.Weekend.Days)
}

func TestParseSettings_MalformedNightTimesCoerceToMidnight(t *testing.T) {
	f := factory.NewSettingsFactory()
	settings, err := f.ParseSettings(`{
		"pay_rules": {"night": {"enabled": true, "start": "later", "end": "06:00"}}
	}`)
	require.NoError(t, err)
	assert.Equal(t, engine.ClockTime{}, settings.Rules.Night.Window.Start)
	assert.Equal(t, engine.NewClockTime(6, 0), settings.Rules.Night.Window.End)
}

func TestParseSettings_UnknownRateKindDefaultsToBase(t *testing.T) {
	f := factory.NewSettingsFactory()
	settings, err := f.ParseSettings(`{
		"rates": [{"id": "r1", "label": "Standard", "value": 12, "kind": "mystery"}]
	}`)
	require.NoError(t, err)
	assert.Equal(t, engine.RateBase, settings.Rates[0].Kind)
}

// =============================================================================
// ROUND-TRIP TESTS
// =============================================================================

func TestToJSON_RoundTripPreservesNormalizedRules(t *testing.T) {
	// GIVEN: A legacy-era document
	// WHEN: Parsing, serializing, and parsing again
	// THEN: The second parse equals the first; legacy shapes are gone

	f := factory.NewSettingsFactory()
	first, err := f.ParseSettings(`{
		"preferences": {"week_starts_on": "sunday", "include_breaks_in_duration": true},
		"pay_rules": {
			"overtime": {"enabled": true, "basis": "weekly", "threshold_hours": 40, "type": "percentage", "value": 150},
			"night": {"enabled": true, "start": "22:00", "end": "06:00", "type": "fixed", "value": 2},
			"tax": {"enabled": true, "percentage": 20, "personal_allowance": 242}
		},
		"rates": [{"id": "r1", "label": "Standard", "value": 12.5, "kind": "base"}],
		"notifications": {"enabled": true, "reminder_delay_seconds": 300}
	}`)
	require.NoError(t, err)

	doc := f.ToJSON(first)
	assert.Empty(t, doc.Rules.Overtime.Type, "legacy shape should not be written back")
	assert.Equal(t, "multiplier", doc.Rules.Overtime.Mode)

	second := f.FromJSON(doc)
	assert.Equal(t, first.Preferences, second.Preferences)
	assert.Equal(t, first.Notifications, second.Notifications)
	assert.Equal(t, first.Rules.Overtime.Enabled, second.Rules.Overtime.Enabled)
	assert.Equal(t, first.Rules.Overtime.Basis, second.Rules.Overtime.Basis)
	assert.True(t, first.Rules.Overtime.Modifier.Amount.Equal(second.Rules.Overtime.Modifier.Amount))
	assert.Equal(t, first.Rules.Night.Window, second.Rules.Night.Window)
	assert.True(t, first.Rules.Tax.Percent.Equal(second.Rules.Tax.Percent))
	require.Len(t, second.Rates, 1)
	assert.True(t, first.Rates[0].Value.Equal(second.Rates[0].Value))
}
