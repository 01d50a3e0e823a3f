// Package pomodoro composes the countdown engine and the cycle machine into
// one timer exposing the union of their state.
package pomodoro

import (
	"sync"
	"time"

	"focusify/internal/clock"
	"focusify/internal/countdown"
	"focusify/internal/cycle"
	"focusify/internal/model"
)

// Option configures a Timer.
type Option func(*options)

type options struct {
	clock  clock.Clock
	config countdown.Config
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithEngineConfig sets the tick interval and auto-start delay.
func WithEngineConfig(config countdown.Config) Option {
	return func(o *options) {
		o.config = config
	}
}

type Timer struct {
	settings model.PomodoroSettings
	engine   *countdown.Engine
	machine  *cycle.Machine

	subsMu sync.Mutex
	subs   []chan model.SessionCompletionEvent
	closed bool
}

func New(settings model.PomodoroSettings, opts ...Option) *Timer {
	o := options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}

	machine := cycle.NewMachine(settings)
	t := &Timer{
		settings: machine.Settings(),
		machine:  machine,
		engine:   countdown.New(o.clock, o.config, machine),
	}
	t.engine.SetAutoStartNext(t.settings.AutoStartNext)
	t.engine.OnComplete(t.broadcast)
	return t
}

func (t *Timer) Settings() model.PomodoroSettings {
	return t.settings
}

func (t *Timer) Start() {
	t.engine.Start()
}

func (t *Timer) Pause() {
	t.engine.Pause()
}

func (t *Timer) Reset() {
	t.engine.Reset()
}

func (t *Timer) SetMode(mode model.Mode) {
	t.engine.SetMode(mode)
}

func (t *Timer) SetAutoStartNext(enabled bool) {
	t.engine.SetAutoStartNext(enabled)
}

func (t *Timer) AutoStartPending() bool {
	return t.engine.AutoStartPending()
}

// ResetCycle clears the cycle counters but keeps the lifetime total. A
// pending auto-start is cancelled.
func (t *Timer) ResetCycle() {
	t.engine.DoCancellingAutoStart(func(model.TimerState) {
		t.machine.ResetCycle()
	})
}

// NewDay resets the cycle state, including the total, and cancels a pending
// auto-start. A running countdown keeps running.
func (t *Timer) NewDay() {
	t.engine.DoCancellingAutoStart(func(model.TimerState) {
		t.machine.NewDay()
	})
}

// ClearAll returns both the countdown and the cycle state to their
// initial values.
func (t *Timer) ClearAll() {
	snapshot := model.DefaultSnapshot()
	snapshot.AutoStartNext = t.settings.AutoStartNext
	t.engine.Restore(snapshot)
}

// NextSession projects what follows the current mode if it were to
// complete now.
func (t *Timer) NextSession() model.NextSession {
	var next model.NextSession
	t.engine.Do(func(state model.TimerState) {
		next = t.machine.NextSession(state.Mode)
	})
	return next
}

// Snapshot returns the persistable state.
func (t *Timer) Snapshot() model.Snapshot {
	return t.engine.Snapshot()
}

// View returns the display state including cycle progress.
func (t *Timer) View() model.View {
	return t.view(t.engine.Snapshot())
}

// Status is a consistent read of everything a client displays.
type Status struct {
	View             model.View
	NextSession      model.NextSession
	AutoStartPending bool
}

// Status reads the view, the projection and the pending auto-start under a
// single engine lock, so a tick cannot land between them.
func (t *Timer) Status() Status {
	var status Status
	t.engine.Read(func(snapshot model.Snapshot, pending bool) {
		status = Status{
			View:             t.view(snapshot),
			NextSession:      t.machine.NextSession(snapshot.Mode),
			AutoStartPending: pending,
		}
	})
	return status
}

func (t *Timer) view(snapshot model.Snapshot) model.View {
	return model.View{
		Snapshot:         snapshot,
		CycleProgress:    model.CycleProgress(snapshot.SessionsCompleted, t.settings.SessionsPerCycle),
		SessionsPerCycle: t.settings.SessionsPerCycle,
	}
}

// Restore loads a persisted snapshot, repairing anything that violates the
// timer or cycle invariants. The repairs are returned for the caller to log.
func (t *Timer) Restore(snapshot model.Snapshot) []string {
	sanitized, repairs := snapshot.Sanitize(t.settings.SessionsPerCycle)
	t.engine.Restore(sanitized)
	return repairs
}

// RestoreOn restores snapshot and starts a new day if it was saved on an
// earlier calendar day than now, in now's location.
func (t *Timer) RestoreOn(snapshot model.Snapshot, now time.Time) (repairs []string, newDay bool) {
	repairs = t.Restore(snapshot)
	if snapshot.SavedAt.IsZero() {
		return repairs, false
	}
	if startOfDay(snapshot.SavedAt.In(now.Location())).Before(startOfDay(now)) {
		t.NewDay()
		return repairs, true
	}
	return repairs, false
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// OnComplete registers a synchronous completion listener. Listeners run
// outside the engine lock and may call back into the Timer.
func (t *Timer) OnComplete(listener countdown.Listener) {
	t.engine.OnComplete(listener)
}

// OnAutoStart registers a listener called after a delayed start fires.
func (t *Timer) OnAutoStart(listener countdown.StartListener) {
	t.engine.OnAutoStart(listener)
}

// Subscribe returns a channel of completion events. Delivery never blocks;
// a full channel drops the event. The channel is closed by Close.
func (t *Timer) Subscribe(buffer int) <-chan model.SessionCompletionEvent {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan model.SessionCompletionEvent, buffer)
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	if t.closed {
		close(ch)
		return ch
	}
	t.subs = append(t.subs, ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (t *Timer) Unsubscribe(ch <-chan model.SessionCompletionEvent) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	for i, sub := range t.subs {
		if sub == ch {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close stops all timers and closes subscriber channels.
func (t *Timer) Close() {
	t.engine.Close()

	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}

func (t *Timer) broadcast(event model.SessionCompletionEvent) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
