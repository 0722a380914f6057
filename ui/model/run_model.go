package model

import (
	"sync"
	"time"
)

// RunModel tracks the progress and duration of the current auto-track run.
// It is decoupled from the UI; presenters should poll Values() and update
// views. Guarded by a mutex because progress arrives on the session
// goroutine while ticks run on the UI thread. The zero value is ready to use.
type RunModel struct {
	mu      sync.Mutex
	active  bool
	started time.Time
	elapsed time.Duration
	frame   int
	total   int
}

// NewRunModel returns a pointer to a ready-to-use RunModel.
func NewRunModel() *RunModel { return &RunModel{} }

// Start marks a new run as active and resets progress.
func (m *RunModel) Start(now time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = true
	m.started = now
	m.elapsed = 0
	m.frame, m.total = 0, 0
}

// OnProgress records per-frame progress. Safe to call from any goroutine.
func (m *RunModel) OnProgress(frame, total int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame, m.total = frame, total
}

// OnTick advances the elapsed duration while a run is active.
func (m *RunModel) OnTick(now time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		m.elapsed = now.Sub(m.started)
	}
}

// Finish marks the run as over, freezing the elapsed duration.
func (m *RunModel) Finish(now time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		m.elapsed = now.Sub(m.started)
		m.active = false
	}
}

// Values returns the latest progress, elapsed duration and active flag.
func (m *RunModel) Values() (frame, total int, elapsed time.Duration, active bool) {
	if m == nil {
		return 0, 0, 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame, m.total, m.elapsed, m.active
}
