/*
handlers_test.go - HTTP-level tests for the API

Tests for:
- Timer lifecycle over HTTP, including transition conflicts
- Pay calculation responses and error mapping
- Settings updates with legacy rule shapes
- Per-date derivation endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shiftpal/shift-engine/engine"
	enginestore "github.com/shiftpal/shift-engine/engine/store"
	"github.com/shiftpal/shift-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestServer(t *testing.T) (*httptest.Server, *testClock, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clk := &testClock{now: time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)}

	ids := 0
	timer := engine.NewTimerStateMachine(store, clk.Now, func() string {
		ids++
		return fmt.Sprintf("shift-%d", ids)
	})
	deriver := engine.NewDeriver(store)
	orch := engine.NewOrchestrator(deriver, store, clk.Now, nil)

	handler := NewHandler(store, timer, deriver, orch, clk.Now)
	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, clk, store
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func seedRates(t *testing.T, srv *httptest.Server) {
	t.Helper()
	status := doJSON(t, http.MethodPut, srv.URL+"/api/settings/rates", []map[string]any{
		{"id": "standard", "label": "Standard", "value": 10.0, "kind": "base"},
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("Failed to seed rates: status %d", status)
	}
}

// =============================================================================
// TIMER ENDPOINT TESTS
// =============================================================================

func TestAPI_TimerLifecycle(t *testing.T) {
	// GIVEN: A fresh server
	// WHEN: Driving start -> pause -> note -> resume -> stop over HTTP
	// THEN: Each step reflects the machine state; stop returns the shift

	srv, clk, _ := newTestServer(t)

	var state TimerStateDTO
	if status := doJSON(t, http.MethodPost, srv.URL+"/api/timer/start", nil, &state); status != http.StatusOK {
		t.Fatalf("start: status %d", status)
	}
	if state.Status != "running" {
		t.Errorf("expected running, got %s", state.Status)
	}

	clk.Advance(4 * time.Hour)
	doJSON(t, http.MethodPost, srv.URL+"/api/timer/pause", nil, &state)
	if state.Status != "paused" {
		t.Errorf("expected paused, got %s", state.Status)
	}

	doJSON(t, http.MethodPost, srv.URL+"/api/timer/note", BreakNoteRequest{Note: "lunch"}, &state)
	if len(state.Breaks) != 1 || state.Breaks[0].Note != "lunch" {
		t.Errorf("expected annotated break, got %+v", state.Breaks)
	}

	clk.Advance(30 * time.Minute)
	doJSON(t, http.MethodPost, srv.URL+"/api/timer/resume", nil, &state)
	if state.Status != "running" {
		t.Errorf("expected running, got %s", state.Status)
	}

	clk.Advance(4 * time.Hour)
	var shift ShiftDTO
	if status := doJSON(t, http.MethodPost, srv.URL+"/api/timer/stop", StopTimerRequest{}, &shift); status != http.StatusOK {
		t.Fatalf("stop: status %d", status)
	}
	if shift.DurationMinutes != 8*60 {
		t.Errorf("expected 480 minutes, got %d", shift.DurationMinutes)
	}
	if shift.BreakMinutes != 30 {
		t.Errorf("expected 30 break minutes, got %d", shift.BreakMinutes)
	}

	doJSON(t, http.MethodGet, srv.URL+"/api/timer", nil, &state)
	if state.Status != "idle" {
		t.Errorf("expected idle after stop, got %s", state.Status)
	}
}

func TestAPI_TimerConflict_409(t *testing.T) {
	srv, _, _ := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/timer/start", nil, nil)

	var errResp ErrorResponse
	status := doJSON(t, http.MethodPost, srv.URL+"/api/timer/start", nil, &errResp)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if errResp.Error == "" {
		t.Error("expected an error message")
	}
}

func TestAPI_StopIdle_409(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status := doJSON(t, http.MethodPost, srv.URL+"/api/timer/stop", StopTimerRequest{}, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
}

func TestAPI_StopUsesPreferenceWhenBodyOmitsIncludeBreaks(t *testing.T) {
	// GIVEN: include_breaks_in_duration enabled in preferences
	// WHEN: Stopping without an explicit include_breaks
	// THEN: Break time folds into the reported duration

	srv, clk, _ := newTestServer(t)

	prefs := map[string]any{"week_starts_on": "monday", "include_breaks_in_duration": true}
	doJSON(t, http.MethodPut, srv.URL+"/api/settings/preferences", prefs, nil)

	doJSON(t, http.MethodPost, srv.URL+"/api/timer/start", nil, nil)
	clk.Advance(4 * time.Hour)
	doJSON(t, http.MethodPost, srv.URL+"/api/timer/pause", nil, nil)
	clk.Advance(time.Hour)
	doJSON(t, http.MethodPost, srv.URL+"/api/timer/resume", nil, nil)
	clk.Advance(3 * time.Hour)

	var shift ShiftDTO
	doJSON(t, http.MethodPost, srv.URL+"/api/timer/stop", StopTimerRequest{}, &shift)
	if shift.DurationMinutes != 8*60 {
		t.Errorf("expected 480 minutes with breaks folded in, got %d", shift.DurationMinutes)
	}
}

// =============================================================================
// PAY ENDPOINT TESTS
// =============================================================================

func TestAPI_Calculate_ManualMode(t *testing.T) {
	srv, _, _ := newTestServer(t)
	seedRates(t, srv)

	var calc CalculationDTO
	status := doJSON(t, http.MethodPost, srv.URL+"/api/pay/calculate", map[string]any{
		"mode":           "manual",
		"date":           "2025-03-12",
		"hourly_rate_id": "standard",
		"hours_worked":   map[string]int{"hours": 8, "minutes": 0},
	}, &calc)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if calc.Breakdown.Gross != 80.00 {
		t.Errorf("expected gross 80.00, got %.2f", calc.Breakdown.Gross)
	}
	if calc.BaseRate != 10.00 {
		t.Errorf("expected base rate 10.00, got %.2f", calc.BaseRate)
	}
}

func TestAPI_Calculate_NoRate_422(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var errResp ErrorResponse
	status := doJSON(t, http.MethodPost, srv.URL+"/api/pay/calculate", map[string]any{
		"mode": "manual",
		"date": "2025-03-12",
	}, &errResp)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}
}

func TestAPI_Calculate_MalformedBody_400(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/pay/calculate", bytes.NewReader([]byte("{not json")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAPI_SaveAndListHistory(t *testing.T) {
	srv, _, _ := newTestServer(t)
	seedRates(t, srv)

	input := map[string]any{
		"mode":           "manual",
		"date":           "2025-03-12",
		"hourly_rate_id": "standard",
		"hours_worked":   map[string]int{"hours": 6, "minutes": 30},
	}

	var saved PayHistoryEntryDTO
	if status := doJSON(t, http.MethodPost, srv.URL+"/api/pay/history", input, &saved); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if saved.ID == "" {
		t.Error("expected a generated entry ID")
	}
	if saved.Breakdown.Gross != 65.00 {
		t.Errorf("expected gross 65.00, got %.2f", saved.Breakdown.Gross)
	}

	var entries []PayHistoryEntryDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/pay/history", nil, &entries)
	if len(entries) != 1 || entries[0].ID != saved.ID {
		t.Errorf("expected the saved entry, got %+v", entries)
	}
	if entries[0].Date != "2025-03-12" {
		t.Errorf("expected date 2025-03-12, got %s", entries[0].Date)
	}
}

// =============================================================================
// SETTINGS ENDPOINT TESTS
// =============================================================================

func TestAPI_SetPayRules_NormalizesLegacyShape(t *testing.T) {
	// GIVEN: A legacy-shaped overtime rule submitted over HTTP
	// WHEN: Reading the settings back
	// THEN: The stored document carries the canonical shape

	srv, _, _ := newTestServer(t)

	rules := map[string]any{
		"overtime": map[string]any{
			"enabled":         true,
			"basis":           "daily",
			"threshold_hours": 8,
			"type":            "percentage",
			"value":           150,
		},
	}
	if status := doJSON(t, http.MethodPut, srv.URL+"/api/settings/pay-rules", rules, nil); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	var doc struct {
		Rules struct {
			Overtime struct {
				Mode       string   `json:"mode"`
				Multiplier *float64 `json:"multiplier"`
				Type       string   `json:"type"`
			} `json:"overtime"`
		} `json:"pay_rules"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/api/settings", nil, &doc)
	if doc.Rules.Overtime.Mode != "multiplier" {
		t.Errorf("expected canonical multiplier shape, got %+v", doc.Rules.Overtime)
	}
	if doc.Rules.Overtime.Multiplier == nil || *doc.Rules.Overtime.Multiplier != 1.5 {
		t.Errorf("expected multiplier 1.5, got %+v", doc.Rules.Overtime.Multiplier)
	}
	if doc.Rules.Overtime.Type != "" {
		t.Errorf("legacy shape written back: %+v", doc.Rules.Overtime)
	}
}

func TestAPI_SettingsChangeInvalidatesCommittedCalculation(t *testing.T) {
	// GIVEN: A handler over in-memory stores with a committed calculation
	// WHEN: Pay rules change through the settings store
	// THEN: The handler's subscription drops the committed breakdown

	settings := enginestore.NewMemorySettings(engine.AppSettings{
		Rates: []engine.PayRate{
			{ID: "standard", Label: "Standard", Value: engine.NewMoney(10), Kind: engine.RateBase},
		},
	})
	mem := enginestore.NewMemoryTimer()
	hist := enginestore.NewMemoryHistory(mem)
	deriver := engine.NewDeriver(hist)
	orch := engine.NewOrchestrator(deriver, hist, nil, nil)
	timer := engine.NewTimerStateMachine(mem, nil, nil)
	NewHandler(settings, timer, deriver, orch, nil)

	ctx := context.Background()
	current, err := settings.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}

	input := engine.PayCalculationInput{
		Mode:         engine.ModeManual,
		Date:         time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
		HourlyRateID: "standard",
		HoursWorked:  engine.NewHourQuantity(8, 0),
	}
	if _, _, err := orch.Recompute(ctx, input, current); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if latest, _ := orch.Latest(); latest == nil {
		t.Fatal("expected a committed breakdown")
	}

	if err := settings.SetPayRules(ctx, engine.PayRules{}); err != nil {
		t.Fatalf("set pay rules: %v", err)
	}
	if latest, _ := orch.Latest(); latest != nil {
		t.Error("expected the committed breakdown to be dropped after the rules changed")
	}
}

// =============================================================================
// DERIVATION ENDPOINT TESTS
// =============================================================================

func TestAPI_OvertimeSplitForDate(t *testing.T) {
	// GIVEN: A 10h shift recorded through the timer and an 8h daily rule
	// WHEN: Querying the date's split
	// THEN: 480 base / 120 overtime

	srv, clk, _ := newTestServer(t)

	rules := map[string]any{
		"overtime": map[string]any{
			"enabled":         true,
			"basis":           "daily",
			"threshold_hours": 8,
			"mode":            "multiplier",
			"multiplier":      1.5,
		},
	}
	doJSON(t, http.MethodPut, srv.URL+"/api/settings/pay-rules", rules, nil)

	doJSON(t, http.MethodPost, srv.URL+"/api/timer/start", nil, nil)
	clk.Advance(10 * time.Hour)
	doJSON(t, http.MethodPost, srv.URL+"/api/timer/stop", StopTimerRequest{}, nil)

	var split SplitDTO
	status := doJSON(t, http.MethodGet, srv.URL+"/api/dates/2025-03-10/overtime-split", nil, &split)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if split.BaseMinutes != 8*60 || split.OvertimeMinutes != 2*60 {
		t.Errorf("expected 480/120, got %+v", split)
	}
}

func TestAPI_ShiftsForDate(t *testing.T) {
	srv, clk, _ := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/timer/start", nil, nil)
	clk.Advance(5 * time.Hour)
	doJSON(t, http.MethodPost, srv.URL+"/api/timer/stop", StopTimerRequest{}, nil)

	var shifts []ShiftDTO
	doJSON(t, http.MethodGet, srv.URL+"/api/dates/2025-03-10/shifts", nil, &shifts)
	if len(shifts) != 1 || shifts[0].DurationMinutes != 5*60 {
		t.Errorf("expected one 300-minute shift, got %+v", shifts)
	}
}

func TestAPI_BadDate_400(t *testing.T) {
	srv, _, _ := newTestServer(t)

	status := doJSON(t, http.MethodGet, srv.URL+"/api/dates/not-a-date/overtime-split", nil, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}
