package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftpal/shift-engine/engine"
	"github.com/shiftpal/shift-engine/factory"
	"github.com/shiftpal/shift-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// tick is a deterministic clock for driving a state machine against the
// real store.
type tick struct {
	now time.Time
}

func newTick() *tick {
	return &tick{now: time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *tick) Now() time.Time          { return c.now }
func (c *tick) Advance(d time.Duration) { c.now = c.now.Add(d) }

// =============================================================================
// SETTINGS TESTS
// =============================================================================

func TestSettings_EmptyDatabase_NormalizedDefaults(t *testing.T) {
	store := newTestStore(t)

	settings, err := store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Monday, settings.Preferences.WeekStartsOn)
	assert.Empty(t, settings.Rates)
}

func TestSettings_SetPayRules_RoundTrips(t *testing.T) {
	// GIVEN: A rule stack written through the store
	// WHEN: Reading it back
	// THEN: The normalized rules survive the JSON document round-trip

	store := newTestStore(t)
	ctx := context.Background()

	rules := engine.PayRules{
		Overtime: engine.OvertimeRule{
			Enabled:        true,
			Basis:          engine.BasisWeekly,
			ThresholdHours: decimal.NewFromInt(40),
			Modifier:       engine.Multiplier(1.5),
		},
		Night: engine.NightRule{
			Enabled: true,
			Window: engine.ClockWindow{
				Start: engine.NewClockTime(22, 0),
				End:   engine.NewClockTime(6, 0),
			},
			Modifier: engine.FixedUplift(2),
		},
		Tax: engine.TaxRule{
			Enabled:           true,
			Percent:           decimal.NewFromInt(20),
			PersonalAllowance: engine.NewMoney(242),
		},
	}
	require.NoError(t, store.SetPayRules(ctx, rules))

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.BasisWeekly, got.Rules.Overtime.Basis)
	assert.True(t, got.Rules.Overtime.ThresholdHours.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, engine.ModifierMultiplier, got.Rules.Overtime.Modifier.Kind)
	assert.Equal(t, rules.Night.Window, got.Rules.Night.Window)
	assert.True(t, got.Rules.Tax.Percent.Equal(decimal.NewFromInt(20)))
}

func TestSettings_SetRates_ReplacesList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetRates(ctx, []engine.PayRate{
		{ID: "standard", Label: "Standard", Value: engine.NewMoney(12.5), Kind: engine.RateBase},
	}))
	require.NoError(t, store.SetRates(ctx, []engine.PayRate{
		{ID: "enhanced", Label: "Enhanced", Value: engine.NewMoney(16), Kind: engine.RateBase},
	}))

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	require.Len(t, got.Rates, 1)
	assert.Equal(t, "enhanced", got.Rates[0].ID)
}

func TestSettings_SubscribersNotifiedOnChange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var seen []engine.AppSettings
	unsubscribe := store.Subscribe(func(s engine.AppSettings) { seen = append(seen, s) })

	require.NoError(t, store.SetPreferences(ctx, engine.Preferences{WeekStartsOn: time.Sunday}))
	require.Len(t, seen, 1)
	assert.Equal(t, time.Sunday, seen[0].Preferences.WeekStartsOn)

	unsubscribe()
	require.NoError(t, store.SetPreferences(ctx, engine.Preferences{WeekStartsOn: time.Monday}))
	assert.Len(t, seen, 1, "unsubscribed callback should not fire")
}

func TestSettings_SeedOnFirstRunOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	has, err := store.HasSettings(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	notified := false
	store.Subscribe(func(engine.AppSettings) { notified = true })

	seed := factory.SettingsJSON{
		Rates: []factory.RateJSON{{ID: "standard", Label: "Standard", Value: 12.5}},
	}
	require.NoError(t, store.SeedSettings(ctx, seed))
	assert.False(t, notified, "seeding should not notify subscribers")

	has, err = store.HasSettings(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	require.Len(t, got.Rates, 1)
	assert.Equal(t, "standard", got.Rates[0].ID)
}

// =============================================================================
// TIMER PERSISTENCE TESTS
// =============================================================================

func TestTimer_RestartReproducesIdenticalNumbers(t *testing.T) {
	// GIVEN: A session with a closed break and an open break, driven through
	//        the state machine against the real store
	// WHEN: A fresh machine loads from the same database
	// THEN: Elapsed, break totals, and status match exactly

	store := newTestStore(t)
	clk := newTick()
	ctx := context.Background()

	machine := engine.NewTimerStateMachine(store, clk.Now, nil)
	require.NoError(t, machine.Start(ctx))
	clk.Advance(time.Hour)
	require.NoError(t, machine.Pause(ctx))
	clk.Advance(10 * time.Minute)
	require.NoError(t, machine.Resume(ctx))
	clk.Advance(30 * time.Minute)
	require.NoError(t, machine.Pause(ctx))
	require.NoError(t, machine.SetCurrentBreakNote(ctx, "lunch"))
	clk.Advance(5 * time.Minute)

	restored := engine.NewTimerStateMachine(store, clk.Now, nil)
	require.NoError(t, restored.Load(ctx))

	want := machine.Snapshot()
	got := restored.Snapshot()
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.Elapsed, got.Elapsed)
	assert.Equal(t, want.TotalBreak, got.TotalBreak)
	assert.Equal(t, want.CurrentBreak, got.CurrentBreak)
	require.Len(t, got.Breaks, 2)
	assert.Equal(t, "lunch", got.Breaks[1].Note)
}

func TestTimer_UndoOpenBreak_PersistedAsRunning(t *testing.T) {
	// The implicit resume on undoing an open break must survive a restart.
	store := newTestStore(t)
	clk := newTick()
	ctx := context.Background()

	machine := engine.NewTimerStateMachine(store, clk.Now, nil)
	require.NoError(t, machine.Start(ctx))
	clk.Advance(20 * time.Minute)
	require.NoError(t, machine.Pause(ctx))
	clk.Advance(5 * time.Minute)
	require.NoError(t, machine.UndoLastBreak(ctx))

	rec, err := store.GetRunningTimer(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, engine.StatusRunning, rec.Status)
	assert.Empty(t, rec.Breaks)
}

func TestTimer_StopClearsSessionAndRecordsShift(t *testing.T) {
	store := newTestStore(t)
	clk := newTick()
	ctx := context.Background()

	machine := engine.NewTimerStateMachine(store, clk.Now, func() string { return "shift-1" })
	require.NoError(t, machine.Start(ctx))
	clk.Advance(8 * time.Hour)

	shift, err := machine.Stop(ctx, false)
	require.NoError(t, err)

	rec, err := store.GetRunningTimer(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec, "session should be cleared after stop")

	shifts, err := store.ShiftsForDate(ctx, shift.Start)
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, "shift-1", shifts[0].ID)
	assert.Equal(t, 8*60, shifts[0].DurationMinutes)
	assert.True(t, shifts[0].Start.Equal(shift.Start))
}

func TestTimer_ShiftsForDate_FiltersByCalendarDay(t *testing.T) {
	store := newTestStore(t)
	clk := newTick()
	ctx := context.Background()

	ids := []string{"shift-1", "shift-2"}
	machine := engine.NewTimerStateMachine(store, clk.Now, func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	})

	require.NoError(t, machine.Start(ctx))
	clk.Advance(4 * time.Hour)
	_, err := machine.Stop(ctx, false)
	require.NoError(t, err)

	clk.Advance(24 * time.Hour)
	require.NoError(t, machine.Start(ctx))
	clk.Advance(4 * time.Hour)
	_, err = machine.Stop(ctx, false)
	require.NoError(t, err)

	day1 := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	shifts, err := store.ShiftsForDate(ctx, day1)
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, "shift-1", shifts[0].ID)

	shifts, err = store.ShiftsForDate(ctx, day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, "shift-2", shifts[0].ID)
}

// =============================================================================
// PAY HISTORY TESTS
// =============================================================================

func TestPayHistory_SaveAndReloadExactNumbers(t *testing.T) {
	// GIVEN: A saved calculation entry with unrounded money values
	// WHEN: Reloading from the database
	// THEN: Every decimal survives exactly, not as a rounded float

	store := newTestStore(t)
	ctx := context.Background()

	exact := engine.Money{Value: decimal.RequireFromString("95.0428333333333333")}
	entry := engine.PayCalculationEntry{
		ID: "calc-1",
		Input: engine.PayCalculationInput{
			Mode:         engine.ModeManual,
			Date:         time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
			HourlyRateID: "standard",
			HoursWorked:  engine.NewHourQuantity(7, 41),
		},
		Pay: engine.PayBreakdown{
			Base:  exact,
			Gross: exact,
			Total: exact,
		},
		RateSnapshot: engine.ResolvedRates{
			Base:     engine.NewMoney(12.37),
			Overtime: engine.NewMoney(18.55),
		},
		CalcSnapshot: engine.HourAllocation{BaseMinutes: 461},
		CreatedAt:    time.Date(2025, time.March, 12, 18, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SavePayCalculation(ctx, entry))

	entries, err := store.GetPayHistory(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, entry.ID, got.ID)
	assert.True(t, got.Pay.Gross.Value.Equal(exact.Value), "gross changed: %v", got.Pay.Gross.Value)
	assert.True(t, got.RateSnapshot.Base.Equal(engine.NewMoney(12.37)))
	assert.Equal(t, 461, got.CalcSnapshot.BaseMinutes)
	assert.Equal(t, engine.ModeManual, got.Input.Mode)
	assert.Equal(t, 7*60+41, got.Input.HoursWorked.TotalMinutes())
	assert.True(t, got.CreatedAt.Equal(entry.CreatedAt))
}

func TestPayHistory_OrderedByCreation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.March, 12, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"calc-1", "calc-2", "calc-3"} {
		require.NoError(t, store.SavePayCalculation(ctx, engine.PayCalculationEntry{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := store.GetPayHistory(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "calc-1", entries[0].ID)
	assert.Equal(t, "calc-3", entries[2].ID)
}
