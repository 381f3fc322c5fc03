/*
handlers.go - HTTP API handlers for the shift and pay engine

PURPOSE:
  Exposes the timer state machine, pay calculation orchestrator, settings
  store, and history via REST. Handles HTTP request/response and JSON
  serialization; all domain behavior lives in the engine package.

ENDPOINTS:
  Timer:
    GET    /api/timer                      Live state snapshot
    GET    /api/timer/display              Last ticker-cached snapshot
    POST   /api/timer/start
    POST   /api/timer/pause
    POST   /api/timer/resume
    POST   /api/timer/stop                 {include_breaks} -> finished shift
    POST   /api/timer/undo-break
    POST   /api/timer/note                 {note} on the open break

  Pay:
    POST   /api/pay/calculate              Input -> breakdown
    GET    /api/pay/history                Saved calculations
    POST   /api/pay/history                Save current calculation

  Settings:
    GET    /api/settings
    PUT    /api/settings/preferences
    PUT    /api/settings/pay-rules         Accepts legacy and canonical shapes
    PUT    /api/settings/notifications
    PUT    /api/settings/rates

  Derivations (consumed by the UI, not by the engine):
    GET    /api/dates/{date}/overtime-split
    GET    /api/dates/{date}/night-allocation
    GET    /api/dates/{date}/shifts

ERROR HANDLING:
  - 400: Malformed request body or date
  - 409: Invalid timer transition (start while running, ...)
  - 422: Calculation withheld - no usable base rate configured
  - 500: Collaborator I/O failure

SEE ALSO:
  - dto.go: Request/response structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shiftpal/shift-engine/engine"
	"github.com/shiftpal/shift-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Settings engine.SettingsStore
	Timer    *engine.TimerStateMachine
	Deriver  *engine.Deriver
	Orch     *engine.Orchestrator
	Ticker   *DisplayTicker

	factory *factory.SettingsFactory
	clock   func() time.Time
}

// NewHandler wires the handler. clock is injectable for tests; nil picks
// time.Now.
func NewHandler(settings engine.SettingsStore, timer *engine.TimerStateMachine, deriver *engine.Deriver, orch *engine.Orchestrator, clock func() time.Time) *Handler {
	if clock == nil {
		clock = time.Now
	}
	h := &Handler{
		Settings: settings,
		Timer:    timer,
		Deriver:  deriver,
		Orch:     orch,
		factory:  factory.NewSettingsFactory(),
		clock:    clock,
	}
	h.Ticker = NewDisplayTicker(timer)

	// Any settings change invalidates the committed breakdown; the next
	// calculate produces a fresh one under a newer sequence number.
	settings.Subscribe(func(engine.AppSettings) { orch.Invalidate() })
	return h
}

// =============================================================================
// TIMER HANDLERS
// =============================================================================

func (h *Handler) GetTimer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, timerStateDTO(h.Timer.Snapshot(), h.clock()))
}

// GetTimerDisplay serves the snapshot cached by the periodic tick. The
// tick is advisory: this endpoint may lag the live state by one interval
// but never disagrees with a recompute from the same timestamps.
func (h *Handler) GetTimerDisplay(w http.ResponseWriter, r *http.Request) {
	snap, at := h.Ticker.Latest()
	writeJSON(w, http.StatusOK, timerStateDTO(snap, at))
}

func (h *Handler) StartTimer(w http.ResponseWriter, r *http.Request) {
	if err := h.Timer.Start(r.Context()); err != nil {
		writeEngineError(w, "Failed to start timer", err)
		return
	}
	writeJSON(w, http.StatusOK, timerStateDTO(h.Timer.Snapshot(), h.clock()))
}

func (h *Handler) PauseTimer(w http.ResponseWriter, r *http.Request) {
	if err := h.Timer.Pause(r.Context()); err != nil {
		writeEngineError(w, "Failed to pause timer", err)
		return
	}
	writeJSON(w, http.StatusOK, timerStateDTO(h.Timer.Snapshot(), h.clock()))
}

func (h *Handler) ResumeTimer(w http.ResponseWriter, r *http.Request) {
	if err := h.Timer.Resume(r.Context()); err != nil {
		writeEngineError(w, "Failed to resume timer", err)
		return
	}
	writeJSON(w, http.StatusOK, timerStateDTO(h.Timer.Snapshot(), h.clock()))
}

func (h *Handler) StopTimer(w http.ResponseWriter, r *http.Request) {
	var req StopTimerRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // empty body means defaults
	}

	includeBreaks := false
	if req.IncludeBreaks != nil {
		includeBreaks = *req.IncludeBreaks
	} else if settings, err := h.Settings.GetSettings(r.Context()); err == nil {
		includeBreaks = settings.Preferences.IncludeBreaksInDuration
	}

	shift, err := h.Timer.Stop(r.Context(), includeBreaks)
	if err != nil {
		writeEngineError(w, "Failed to stop timer", err)
		return
	}
	writeJSON(w, http.StatusOK, shiftDTO(*shift))
}

func (h *Handler) UndoLastBreak(w http.ResponseWriter, r *http.Request) {
	if err := h.Timer.UndoLastBreak(r.Context()); err != nil {
		writeEngineError(w, "Failed to undo break", err)
		return
	}
	writeJSON(w, http.StatusOK, timerStateDTO(h.Timer.Snapshot(), h.clock()))
}

func (h *Handler) SetBreakNote(w http.ResponseWriter, r *http.Request) {
	var req BreakNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Timer.SetCurrentBreakNote(r.Context(), req.Note); err != nil {
		writeEngineError(w, "Failed to set break note", err)
		return
	}
	writeJSON(w, http.StatusOK, timerStateDTO(h.Timer.Snapshot(), h.clock()))
}

// =============================================================================
// PAY HANDLERS
// =============================================================================

func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	settings, err := h.Settings.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}

	resolved, _, err := h.Orch.Recompute(r.Context(), req.toInput(), settings)
	if err != nil {
		writeEngineError(w, "Calculation unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, calculationDTO(resolved))
}

func (h *Handler) GetPayHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Orch.History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}
	dtos := make([]PayHistoryEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = PayHistoryEntryDTO{
			ID:         e.ID,
			Date:       e.Input.Date.Format("2006-01-02"),
			Mode:       string(e.Input.Mode),
			Breakdown:  breakdownDTO(e.Pay),
			Allocation: allocationDTO(e.CalcSnapshot),
			CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveCalculation(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	settings, err := h.Settings.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}

	entry, err := h.Orch.Save(r.Context(), req.toInput(), settings)
	if err != nil {
		writeEngineError(w, "Failed to save calculation", err)
		return
	}
	writeJSON(w, http.StatusCreated, PayHistoryEntryDTO{
		ID:         entry.ID,
		Date:       entry.Input.Date.Format("2006-01-02"),
		Mode:       string(entry.Input.Mode),
		Breakdown:  breakdownDTO(entry.Pay),
		Allocation: allocationDTO(entry.CalcSnapshot),
		CreatedAt:  entry.CreatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, h.factory.ToJSON(settings))
}

func (h *Handler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var pj factory.PreferencesJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	prefs := h.factory.FromJSON(factory.SettingsJSON{Preferences: pj}).Preferences
	if err := h.Settings.SetPreferences(r.Context(), prefs); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, pj)
}

// SetPayRules accepts both the legacy and canonical rule shapes; they are
// normalized once here at the settings boundary.
func (h *Handler) SetPayRules(w http.ResponseWriter, r *http.Request) {
	var rj factory.RulesJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Settings.SetPayRules(r.Context(), factory.NormalizeRules(rj)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save pay rules", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) SetNotifications(w http.ResponseWriter, r *http.Request) {
	var nj factory.NotificationsJSON
	if err := json.NewDecoder(r.Body).Decode(&nj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	prefs := engine.NotificationPrefs{Enabled: nj.Enabled, ReminderDelayS: nj.ReminderDelayS}
	if err := h.Settings.SetNotificationPrefs(r.Context(), prefs); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save notification prefs", err)
		return
	}
	writeJSON(w, http.StatusOK, nj)
}

func (h *Handler) SetRates(w http.ResponseWriter, r *http.Request) {
	var rates []factory.RateJSON
	if err := json.NewDecoder(r.Body).Decode(&rates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	parsed := h.factory.FromJSON(factory.SettingsJSON{Rates: rates}).Rates
	if err := h.Settings.SetRates(r.Context(), parsed); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rates", err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

// =============================================================================
// DERIVATION HANDLERS - Outward entry points for the UI
// =============================================================================

func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return time.Time{}, false
	}
	return date, true
}

func (h *Handler) GetOvertimeSplit(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	settings, err := h.Settings.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	split, err := h.Deriver.OvertimeSplitForDate(r.Context(), date, settings)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to derive split", err)
		return
	}
	writeJSON(w, http.StatusOK, SplitDTO{
		BaseMinutes:     split.BaseMinutes,
		OvertimeMinutes: split.OvertimeMinutes,
	})
}

func (h *Handler) GetNightAllocation(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	settings, err := h.Settings.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	night, err := h.Deriver.NightAllocationForDate(r.Context(), date, settings)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to derive night allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, NightSplitDTO{
		NightBaseMinutes:     night.BaseMinutes,
		NightOvertimeMinutes: night.OvertimeMinutes,
	})
}

func (h *Handler) GetShifts(w http.ResponseWriter, r *http.Request) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	shifts, err := h.Deriver.Shifts.ShiftsForDate(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load shifts", err)
		return
	}
	dtos := make([]ShiftDTO, len(shifts))
	for i, s := range shifts {
		dtos[i] = shiftDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine error classes to HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, engine.ErrNotConfigured):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
