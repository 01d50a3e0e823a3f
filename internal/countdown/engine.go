// Package countdown runs a single pomodoro countdown: one tick source, one
// optional pending auto-start, and a coordinator that decides what follows
// a finished session.
//
// The engine lock is the one owner of both the timer state and the
// coordinator's cycle state. Every scheduled callback carries the generation
// it was created with and does nothing once that generation is stale, so a
// cancelled tick can never run alongside a new one.
package countdown

import (
	"sync"
	"time"

	"focusify/internal/clock"
	"focusify/internal/model"
)

const (
	DefaultTickInterval   = time.Second
	DefaultAutoStartDelay = 3 * time.Second
)

// Coordinator is the cycle bookkeeping the engine consults. It is only
// called with the engine lock held.
type Coordinator interface {
	CompleteSession(completed model.Mode) model.SessionCompletionEvent
	HandleModeChange(mode model.Mode)
	State() model.CycleState
	Restore(state model.CycleState)
}

// Config contains runtime options for the Engine.
type Config struct {
	TickInterval   time.Duration
	AutoStartDelay time.Duration
}

// Listener receives completion events after the engine lock is released.
type Listener func(model.SessionCompletionEvent)

// StartListener receives the state right after a scheduled auto-start began
// ticking. It runs after the engine lock is released.
type StartListener func(model.Snapshot)

type Engine struct {
	mu            sync.Mutex
	clock         clock.Clock
	config        Config
	coordinator   Coordinator
	state         model.TimerState
	autoStartNext bool

	gen       uint64
	tick      clock.Handle
	tickGen   uint64
	autoStart clock.Handle
	autoGen   uint64

	listeners      []Listener
	startListeners []StartListener
	closed         bool
}

// New creates an idle engine positioned at the start of a focus session.
// A nil coordinator keeps the engine in the same mode after completion.
func New(c clock.Clock, config Config, coordinator Coordinator) *Engine {
	if c == nil {
		c = clock.Real{}
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.AutoStartDelay <= 0 {
		config.AutoStartDelay = DefaultAutoStartDelay
	}
	return &Engine{
		clock:       c,
		config:      config,
		coordinator: coordinator,
		state:       model.NewTimerState(model.ModeFocus),
	}
}

// OnComplete registers a listener for session completions.
func (e *Engine) OnComplete(listener Listener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, listener)
	e.mu.Unlock()
}

// OnAutoStart registers a listener for delayed starts that actually fired.
func (e *Engine) OnAutoStart(listener StartListener) {
	e.mu.Lock()
	e.startListeners = append(e.startListeners, listener)
	e.mu.Unlock()
}

// Start begins ticking. It is a no-op while running or at zero time left.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startLocked()
}

// Pause stops ticking and keeps the remaining time. It also cancels a
// pending auto-start.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelAutoStartLocked()
	e.stopTickLocked()
	e.state.IsRunning = false
}

// Reset stops ticking and rewinds the current mode to its full duration.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelAutoStartLocked()
	e.stopTickLocked()
	e.state.IsRunning = false
	e.state.TimeLeft = e.state.Mode.Seconds()
}

// SetMode stops ticking, switches to mode at its full duration and tells
// the coordinator about the manual change. Unknown modes are ignored.
func (e *Engine) SetMode(mode model.Mode) {
	if !mode.Valid() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelAutoStartLocked()
	e.stopTickLocked()
	e.state = model.NewTimerState(mode)
	if e.coordinator != nil {
		e.coordinator.HandleModeChange(mode)
	}
}

// SetAutoStartNext toggles auto-continuation. Turning it off cancels a
// pending auto-start.
func (e *Engine) SetAutoStartNext(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoStartNext = enabled
	if !enabled {
		e.cancelAutoStartLocked()
	}
}

func (e *Engine) AutoStartNext() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoStartNext
}

// AutoStartPending reports whether a delayed start is scheduled.
func (e *Engine) AutoStartPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoStart != nil
}

func (e *Engine) State() model.TimerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns timer, cycle and auto-start state read under one lock.
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Restore replaces the whole state. The snapshot must already be
// sanitized. A running snapshot resumes ticking.
func (e *Engine) Restore(snapshot model.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelAutoStartLocked()
	e.stopTickLocked()

	e.state = model.TimerState{Mode: snapshot.Mode, TimeLeft: snapshot.TimeLeft}
	e.autoStartNext = snapshot.AutoStartNext
	if e.coordinator != nil {
		e.coordinator.Restore(snapshot.Cycle())
	}
	if snapshot.IsRunning {
		e.startLocked()
	}
}

// Do runs fn with the engine lock held, serialized with ticks. fn must not
// call back into the engine.
func (e *Engine) Do(fn func(state model.TimerState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state)
}

// DoCancellingAutoStart is Do preceded by cancelling a pending auto-start,
// under the same lock acquisition.
func (e *Engine) DoCancellingAutoStart(fn func(state model.TimerState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelAutoStartLocked()
	fn(e.state)
}

// Read runs fn with a snapshot and the pending auto-start flag taken under
// one lock acquisition. fn must not call back into the engine.
func (e *Engine) Read(fn func(snapshot model.Snapshot, autoStartPending bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.snapshotLocked(), e.autoStart != nil)
}

// Close cancels all scheduled callbacks. A closed engine ignores Start.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelAutoStartLocked()
	e.stopTickLocked()
	e.state.IsRunning = false
	e.closed = true
}

func (e *Engine) startLocked() {
	if e.closed || e.state.IsRunning || e.state.TimeLeft <= 0 {
		return
	}
	e.cancelAutoStartLocked()
	e.state.IsRunning = true

	e.gen++
	gen := e.gen
	e.tickGen = gen
	e.tick = e.clock.Every(e.config.TickInterval, func() {
		e.onTick(gen)
	})
}

func (e *Engine) onTick(gen uint64) {
	e.mu.Lock()
	if e.closed || gen != e.tickGen || e.tick == nil || !e.state.IsRunning {
		e.mu.Unlock()
		return
	}

	if e.state.TimeLeft > 0 {
		e.state.TimeLeft--
	}
	if e.state.TimeLeft > 0 {
		e.mu.Unlock()
		return
	}

	event := e.completeLocked()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// completeLocked stops ticking, commits the transition and adopts the next
// mode, in that order.
func (e *Engine) completeLocked() model.SessionCompletionEvent {
	e.stopTickLocked()
	e.state.IsRunning = false

	completed := e.state.Mode
	var event model.SessionCompletionEvent
	if e.coordinator != nil {
		event = e.coordinator.CompleteSession(completed)
	} else {
		event = model.SessionCompletionEvent{
			CompletedMode: completed,
			NextMode:      completed,
			SessionNumber: 1,
			CycleNumber:   1,
		}
	}
	if !event.NextMode.Valid() {
		event.NextMode = model.ModeFocus
	}
	event.CompletedAt = e.clock.Now()

	e.state = model.NewTimerState(event.NextMode)
	if e.autoStartNext {
		e.scheduleAutoStartLocked()
	}
	return event
}

func (e *Engine) scheduleAutoStartLocked() {
	e.cancelAutoStartLocked()
	e.gen++
	gen := e.gen
	e.autoGen = gen
	e.autoStart = e.clock.After(e.config.AutoStartDelay, func() {
		e.onAutoStart(gen)
	})
}

func (e *Engine) onAutoStart(gen uint64) {
	e.mu.Lock()
	if gen != e.autoGen || e.autoStart == nil {
		e.mu.Unlock()
		return
	}
	e.autoStart = nil
	e.startLocked()
	if !e.state.IsRunning {
		e.mu.Unlock()
		return
	}
	snapshot := e.snapshotLocked()
	listeners := append([]StartListener(nil), e.startListeners...)
	e.mu.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}

func (e *Engine) stopTickLocked() {
	if e.tick != nil {
		e.tick.Stop()
		e.tick = nil
	}
	e.tickGen = 0
}

func (e *Engine) cancelAutoStartLocked() {
	if e.autoStart != nil {
		e.autoStart.Stop()
		e.autoStart = nil
	}
	e.autoGen = 0
}

func (e *Engine) snapshotLocked() model.Snapshot {
	snapshot := model.Snapshot{
		Mode:          e.state.Mode,
		TimeLeft:      e.state.TimeLeft,
		IsRunning:     e.state.IsRunning,
		AutoStartNext: e.autoStartNext,
		CurrentCycle:  1,
	}
	if e.coordinator != nil {
		cycleState := e.coordinator.State()
		snapshot.SessionsCompleted = cycleState.SessionsCompleted
		snapshot.CurrentCycle = cycleState.CurrentCycle
		snapshot.TotalSessions = cycleState.TotalSessions
		snapshot.IsOnBreak = cycleState.IsOnBreak
		snapshot.CycleCompleted = cycleState.CycleCompleted
	}
	return snapshot
}
