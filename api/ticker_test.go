/*
ticker_test.go - Display ticker lifecycle tests

Tests for:
- Stop returning promptly while ticks are firing
- Repeated Stop and Start/Stop cycles
- Lazy snapshot on first read
*/
package api

import (
	"testing"
	"time"

	"github.com/shiftpal/shift-engine/engine"
	enginestore "github.com/shiftpal/shift-engine/engine/store"
)

func newTestTicker() *DisplayTicker {
	machine := engine.NewTimerStateMachine(enginestore.NewMemoryTimer(), nil, nil)
	return NewDisplayTicker(machine)
}

func TestTicker_StopReturnsUnderTickPressure(t *testing.T) {
	// GIVEN: A ticker firing as fast as possible, so a tick is almost always
	//        buffered when Stop runs
	// WHEN: Stopping it repeatedly
	// THEN: Stop always returns; the run goroutine is never left blocked on
	//       the mutex Stop holds

	for i := 0; i < 200; i++ {
		dt := newTestTicker()
		dt.Interval = time.Microsecond
		dt.Start()

		done := make(chan struct{})
		go func() {
			dt.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: Stop did not return", i)
		}
	}
}

func TestTicker_StopTwiceIsNoOp(t *testing.T) {
	dt := newTestTicker()
	dt.Interval = time.Millisecond
	dt.Start()
	dt.Stop()
	dt.Stop()
}

func TestTicker_RestartAfterStop(t *testing.T) {
	dt := newTestTicker()
	dt.Interval = time.Millisecond

	dt.Start()
	dt.Stop()
	dt.Start()
	dt.Stop()
}

func TestTicker_LatestTakesSnapshotBeforeFirstTick(t *testing.T) {
	dt := newTestTicker()

	snap, at := dt.Latest()
	if snap.Status != engine.StatusIdle {
		t.Errorf("expected idle snapshot, got %s", snap.Status)
	}
	if at.IsZero() {
		t.Error("expected a snapshot timestamp")
	}
}
