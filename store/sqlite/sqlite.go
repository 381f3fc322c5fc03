/*
Package sqlite provides the SQLite-backed collaborator implementations.

PURPOSE:
  Implements the engine's SettingsStore, TimerPersistence, and HistoryStore
  contracts on a single SQLite database.

KEY TABLES:
  settings:      One-row JSON document (normalized through factory on read)
  timer_session: The single active session (absolute start timestamp)
  timer_breaks:  Break boundaries as absolute timestamps, ordered
  shifts:        Immutable finished shifts
  pay_history:   Immutable saved calculations (input/rates/split snapshots)

TIMESTAMP CONTRACT:
  The timer tables store absolute RFC3339 timestamps, never durations, so
  elapsed time is always recomputable from wall-clock "now" after a
  restart. This is a correctness requirement of the timer state machine.

NO PARTIAL MUTATION:
  Every timer transition runs in one database transaction; a failed write
  leaves the stored session exactly as it was.

HISTORY IMMUTABILITY:
  shifts and pay_history are append-only. Corrections happen by saving a
  new calculation, never by editing an old one.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block
  while the single writer commits a transition.

USAGE:
  store, err := sqlite.New("./shiftpal.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shiftpal/shift-engine/engine"
	"github.com/shiftpal/shift-engine/factory"
)

// Store implements all three collaborator interfaces on SQLite.
type Store struct {
	db      *sql.DB
	factory *factory.SettingsFactory

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(engine.AppSettings)
}

// New opens (or creates) the database at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:      db,
		factory: factory.NewSettingsFactory(),
		subs:    make(map[int]func(engine.AppSettings)),
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Settings document (single row, normalized through factory on read)
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		document TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Active timer session (at most one row, absolute timestamps only)
	CREATE TABLE IF NOT EXISTS timer_session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		status TEXT NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS timer_breaks (
		ordinal INTEGER PRIMARY KEY AUTOINCREMENT,
		start_at TEXT NOT NULL,
		end_at TEXT,
		note TEXT NOT NULL DEFAULT ''
	);

	-- Finished shifts (append-only)
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		break_minutes INTEGER NOT NULL,
		duration_text TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_shifts_start ON shifts(start_at);

	-- Saved pay calculations (append-only)
	CREATE TABLE IF NOT EXISTS pay_history (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		input_json TEXT NOT NULL,
		pay_json TEXT NOT NULL,
		rate_json TEXT NOT NULL,
		calc_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pay_history_created ON pay_history(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

func (s *Store) GetSettings(ctx context.Context) (engine.AppSettings, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM settings WHERE id = 1`).Scan(&doc)
	if err == sql.ErrNoRows {
		return s.factory.FromJSON(factory.SettingsJSON{}), nil
	}
	if err != nil {
		return engine.AppSettings{}, err
	}
	return s.factory.ParseSettings(doc)
}

// HasSettings reports whether a settings document has ever been written.
// Used by the seed step on first run.
func (s *Store) HasSettings(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SeedSettings writes an initial settings document without notifying
// subscribers. First-run only.
func (s *Store) SeedSettings(ctx context.Context, sj factory.SettingsJSON) error {
	return s.writeDocument(ctx, sj)
}

func (s *Store) SetPreferences(ctx context.Context, p engine.Preferences) error {
	return s.updateSettings(ctx, func(current *engine.AppSettings) {
		current.Preferences = p
	})
}

func (s *Store) SetPayRules(ctx context.Context, r engine.PayRules) error {
	return s.updateSettings(ctx, func(current *engine.AppSettings) {
		current.Rules = r
	})
}

func (s *Store) SetNotificationPrefs(ctx context.Context, n engine.NotificationPrefs) error {
	return s.updateSettings(ctx, func(current *engine.AppSettings) {
		current.Notifications = n
	})
}

func (s *Store) SetRates(ctx context.Context, rates []engine.PayRate) error {
	return s.updateSettings(ctx, func(current *engine.AppSettings) {
		current.Rates = append([]engine.PayRate(nil), rates...)
	})
}

func (s *Store) updateSettings(ctx context.Context, apply func(*engine.AppSettings)) error {
	current, err := s.GetSettings(ctx)
	if err != nil {
		return err
	}
	apply(&current)
	if err := s.writeDocument(ctx, s.factory.ToJSON(current)); err != nil {
		return err
	}
	s.notify(current)
	return nil
}

func (s *Store) writeDocument(ctx context.Context, sj factory.SettingsJSON) error {
	doc, err := json.Marshal(sj)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, document, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		string(doc), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) Subscribe(fn func(engine.AppSettings)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(settings engine.AppSettings) {
	s.subMu.Lock()
	fns := make([]func(engine.AppSettings), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(settings)
	}
}

// =============================================================================
// TIMER PERSISTENCE
// =============================================================================

func (s *Store) GetRunningTimer(ctx context.Context) (*engine.PersistedTimer, error) {
	var status, startedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT status, started_at FROM timer_session WHERE id = 1`).Scan(&status, &startedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	started, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt started_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT start_at, end_at, note FROM timer_breaks ORDER BY ordinal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breaks []engine.Break
	for rows.Next() {
		var startStr, note string
		var endStr sql.NullString
		if err := rows.Scan(&startStr, &endStr, &note); err != nil {
			return nil, err
		}
		b := engine.Break{Note: note}
		if b.Start, err = time.Parse(time.RFC3339Nano, startStr); err != nil {
			return nil, fmt.Errorf("corrupt break start: %w", err)
		}
		if endStr.Valid {
			end, err := time.Parse(time.RFC3339Nano, endStr.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt break end: %w", err)
			}
			b.End = &end
		}
		breaks = append(breaks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &engine.PersistedTimer{
		Status:    engine.SessionStatus(status),
		StartedAt: started,
		Breaks:    breaks,
	}, nil
}

func (s *Store) StartTimer(ctx context.Context, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM timer_breaks`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO timer_session (id, status, started_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET status = excluded.status, started_at = excluded.started_at`,
			string(engine.StatusRunning), at.UTC().Format(time.RFC3339Nano))
		return err
	})
}

func (s *Store) PauseTimer(ctx context.Context, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE timer_session SET status = ? WHERE id = 1`,
			string(engine.StatusPaused)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO timer_breaks (start_at) VALUES (?)`,
			at.UTC().Format(time.RFC3339Nano))
		return err
	})
}

func (s *Store) ResumeTimer(ctx context.Context, at time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE timer_breaks SET end_at = ?
			WHERE ordinal = (SELECT MAX(ordinal) FROM timer_breaks) AND end_at IS NULL`,
			at.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE timer_session SET status = ? WHERE id = 1`,
			string(engine.StatusRunning))
		return err
	})
}

func (s *Store) UndoLastBreak(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var wasOpen bool
		err := tx.QueryRowContext(ctx, `
			SELECT end_at IS NULL FROM timer_breaks
			WHERE ordinal = (SELECT MAX(ordinal) FROM timer_breaks)`).Scan(&wasOpen)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM timer_breaks
			WHERE ordinal = (SELECT MAX(ordinal) FROM timer_breaks)`); err != nil {
			return err
		}
		// Removing the open break is an implicit resume.
		if wasOpen {
			if _, err := tx.ExecContext(ctx,
				`UPDATE timer_session SET status = ? WHERE id = 1`,
				string(engine.StatusRunning)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SetCurrentBreakNote(ctx context.Context, note string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE timer_breaks SET note = ?
		WHERE ordinal = (SELECT MAX(ordinal) FROM timer_breaks) AND end_at IS NULL`, note)
	return err
}

func (s *Store) StopTimer(ctx context.Context, shift engine.Shift) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM timer_session`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM timer_breaks`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shifts (id, start_at, end_at, duration_minutes, break_minutes, duration_text)
			VALUES (?, ?, ?, ?, ?, ?)`,
			shift.ID,
			shift.Start.UTC().Format(time.RFC3339Nano),
			shift.End.UTC().Format(time.RFC3339Nano),
			shift.DurationMinutes,
			shift.BreakMinutes,
			shift.DurationText)
		return err
	})
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// =============================================================================
// HISTORY STORE
// =============================================================================

func (s *Store) ShiftsForDate(ctx context.Context, date time.Time) ([]engine.Shift, error) {
	day := engine.DateOf(date)
	next := day.AddDate(0, 0, 1)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_at, end_at, duration_minutes, break_minutes, duration_text
		FROM shifts WHERE start_at >= ? AND start_at < ? ORDER BY start_at`,
		day.Format(time.RFC3339Nano), next.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []engine.Shift
	for rows.Next() {
		var sh engine.Shift
		var startStr, endStr string
		if err := rows.Scan(&sh.ID, &startStr, &endStr, &sh.DurationMinutes, &sh.BreakMinutes, &sh.DurationText); err != nil {
			return nil, err
		}
		if sh.Start, err = time.Parse(time.RFC3339Nano, startStr); err != nil {
			return nil, fmt.Errorf("corrupt shift start: %w", err)
		}
		if sh.End, err = time.Parse(time.RFC3339Nano, endStr); err != nil {
			return nil, fmt.Errorf("corrupt shift end: %w", err)
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

func (s *Store) GetPayHistory(ctx context.Context) ([]engine.PayCalculationEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, input_json, pay_json, rate_json, calc_json
		FROM pay_history ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []engine.PayCalculationEntry
	for rows.Next() {
		var e engine.PayCalculationEntry
		var createdStr, inputJSON, payJSON, rateJSON, calcJSON string
		if err := rows.Scan(&e.ID, &createdStr, &inputJSON, &payJSON, &rateJSON, &calcJSON); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return nil, fmt.Errorf("corrupt created_at: %w", err)
		}
		if err := json.Unmarshal([]byte(inputJSON), &e.Input); err != nil {
			return nil, fmt.Errorf("corrupt input snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(payJSON), &e.Pay); err != nil {
			return nil, fmt.Errorf("corrupt pay snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(rateJSON), &e.RateSnapshot); err != nil {
			return nil, fmt.Errorf("corrupt rate snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(calcJSON), &e.CalcSnapshot); err != nil {
			return nil, fmt.Errorf("corrupt calc snapshot: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) SavePayCalculation(ctx context.Context, entry engine.PayCalculationEntry) error {
	inputJSON, err := json.Marshal(entry.Input)
	if err != nil {
		return err
	}
	payJSON, err := json.Marshal(entry.Pay)
	if err != nil {
		return err
	}
	rateJSON, err := json.Marshal(entry.RateSnapshot)
	if err != nil {
		return err
	}
	calcJSON, err := json.Marshal(entry.CalcSnapshot)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pay_history (id, created_at, input_json, pay_json, rate_json, calc_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(inputJSON), string(payJSON), string(rateJSON), string(calcJSON))
	return err
}
