/*
ticker.go - Periodic display snapshot cache

PURPOSE:
  Caches a timer snapshot at a fixed interval for cheap display reads.
  The tick is advisory only: the canonical state lives in the timer's
  timestamps, so a missed or delayed tick never corrupts anything. A
  recompute from the same timestamps always agrees with the cache.

CONFIGURATION:
  - Interval: How often to refresh (default: 1 second)
  - Enabled: Whether the ticker is active (default: true)

USAGE:
  ticker := NewDisplayTicker(timer)
  ticker.Start()
  // ... later
  ticker.Stop()

SEE ALSO:
  - handlers.go: GetTimerDisplay endpoint (serves the cached snapshot)
  - engine/timer.go: TimerStateMachine.Snapshot
*/
package api

import (
	"log"
	"sync"
	"time"

	"github.com/shiftpal/shift-engine/engine"
)

// DisplayTicker refreshes a cached timer snapshot on a fixed interval.
type DisplayTicker struct {
	Timer    *engine.TimerStateMachine
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	latest   engine.TimerSnapshot
	latestAt time.Time
}

// NewDisplayTicker creates a ticker over the given timer.
func NewDisplayTicker(timer *engine.TimerStateMachine) *DisplayTicker {
	return &DisplayTicker{
		Timer:    timer,
		Interval: 1 * time.Second,
		Enabled:  true,
	}
}

// Start begins the ticker. Starting while already running is a no-op.
func (dt *DisplayTicker) Start() {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if !dt.Enabled {
		log.Println("[Ticker] Disabled, not starting")
		return
	}
	if dt.ticker != nil {
		return
	}

	dt.refreshLocked()
	dt.ticker = time.NewTicker(dt.Interval)
	dt.stop = make(chan bool)
	dt.wg.Add(1)

	go dt.run(dt.ticker.C, dt.stop)

	log.Printf("[Ticker] Started with interval: %v", dt.Interval)
}

// Stop stops the ticker and waits for the run goroutine to exit. The wait
// happens outside the mutex: a tick can still be buffered after the ticker
// is stopped, and the run goroutine needs the mutex to process it. Stopping
// an already-stopped ticker is a no-op.
func (dt *DisplayTicker) Stop() {
	dt.mu.Lock()
	if dt.ticker == nil {
		dt.mu.Unlock()
		return
	}
	dt.ticker.Stop()
	dt.ticker = nil
	close(dt.stop)
	dt.mu.Unlock()

	dt.wg.Wait()
	log.Println("[Ticker] Stopped")
}

func (dt *DisplayTicker) run(tick <-chan time.Time, stop <-chan bool) {
	defer dt.wg.Done()

	for {
		select {
		case <-tick:
			dt.Refresh()
		case <-stop:
			return
		}
	}
}

// Refresh recomputes and caches the snapshot immediately.
func (dt *DisplayTicker) Refresh() {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	dt.refreshLocked()
}

func (dt *DisplayTicker) refreshLocked() {
	dt.latest = dt.Timer.Snapshot()
	dt.latestAt = time.Now()
}

// Latest returns the cached snapshot and the time it was taken. If the
// ticker never ran, the snapshot is taken on the spot.
func (dt *DisplayTicker) Latest() (engine.TimerSnapshot, time.Time) {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	if dt.latestAt.IsZero() {
		dt.refreshLocked()
	}
	return dt.latest, dt.latestAt
}
