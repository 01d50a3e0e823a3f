package countdown_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusify/internal/clock"
	"focusify/internal/countdown"
	"focusify/internal/cycle"
	"focusify/internal/model"
)

func newEngine(t *testing.T) (*countdown.Engine, *clock.Fake, *cycle.Machine) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	machine := cycle.NewMachine(model.DefaultPomodoroSettings())
	engine := countdown.New(fake, countdown.Config{}, machine)
	t.Cleanup(engine.Close)
	return engine, fake, machine
}

func TestSetModeRewindsAndStops(t *testing.T) {
	engine, fake, _ := newEngine(t)

	for _, mode := range model.Modes {
		engine.Start()
		fake.Advance(10 * time.Second)

		engine.SetMode(mode)

		state := engine.State()
		assert.Equal(t, mode, state.Mode)
		assert.Equal(t, mode.Seconds(), state.TimeLeft)
		assert.False(t, state.IsRunning)
	}
	assert.Equal(t, 0, fake.Pending())
}

func TestTicksDecrementOncePerSecond(t *testing.T) {
	engine, fake, _ := newEngine(t)

	engine.Start()
	fake.Advance(5 * time.Second)
	assert.Equal(t, 1495, engine.State().TimeLeft)

	fake.Advance(500 * time.Millisecond)
	assert.Equal(t, 1495, engine.State().TimeLeft)
	fake.Advance(500 * time.Millisecond)
	assert.Equal(t, 1494, engine.State().TimeLeft)
}

func TestStartWhileRunningKeepsOneTickSource(t *testing.T) {
	engine, fake, _ := newEngine(t)

	engine.Start()
	engine.Start()
	engine.Start()
	assert.Equal(t, 1, fake.Pending())

	fake.Advance(3 * time.Second)
	assert.Equal(t, 1497, engine.State().TimeLeft)
}

func TestPauseKeepsTimeLeftAndIsIdempotent(t *testing.T) {
	engine, fake, _ := newEngine(t)

	engine.Start()
	fake.Advance(42 * time.Second)
	engine.Pause()
	once := engine.Snapshot()
	engine.Pause()
	twice := engine.Snapshot()

	assert.Equal(t, once, twice)
	assert.Equal(t, 1500-42, twice.TimeLeft)
	assert.False(t, twice.IsRunning)

	fake.Advance(time.Minute)
	assert.Equal(t, 1500-42, engine.State().TimeLeft)
}

func TestTimeLeftNeverIncreasesAcrossStartPause(t *testing.T) {
	engine, fake, _ := newEngine(t)

	last := engine.State().TimeLeft
	for i := 0; i < 50; i++ {
		if i%3 == 0 {
			engine.Pause()
		} else {
			engine.Start()
		}
		fake.Advance(time.Duration(i%4) * time.Second)
		current := engine.State().TimeLeft
		require.LessOrEqual(t, current, last)
		last = current
	}
}

func TestResetRestoresNominalDuration(t *testing.T) {
	engine, fake, _ := newEngine(t)
	engine.SetMode(model.ModeShortBreak)

	engine.Start()
	fake.Advance(30 * time.Second)
	engine.Reset()

	state := engine.State()
	assert.Equal(t, model.ModeShortBreak, state.Mode)
	assert.Equal(t, 300, state.TimeLeft)
	assert.False(t, state.IsRunning)
}

func TestFocusCompletionAdvancesToShortBreak(t *testing.T) {
	engine, fake, machine := newEngine(t)

	var events []model.SessionCompletionEvent
	engine.OnComplete(func(event model.SessionCompletionEvent) {
		events = append(events, event)
	})

	engine.Start()
	fake.Advance(1500 * time.Second)

	require.Len(t, events, 1)
	assert.Equal(t, model.ModeFocus, events[0].CompletedMode)
	assert.Equal(t, model.ModeShortBreak, events[0].NextMode)
	assert.Equal(t, fake.Now(), events[0].CompletedAt)

	state := engine.State()
	assert.Equal(t, model.ModeShortBreak, state.Mode)
	assert.Equal(t, 300, state.TimeLeft)
	assert.False(t, state.IsRunning)

	cycleState := machine.State()
	assert.Equal(t, 1, cycleState.SessionsCompleted)
	assert.Equal(t, 1, cycleState.TotalSessions)
	assert.True(t, cycleState.IsOnBreak)

	fake.Advance(time.Hour)
	assert.Len(t, events, 1)
	assert.Equal(t, 300, engine.State().TimeLeft)
}

func TestStartAtZeroIsNoop(t *testing.T) {
	engine, fake, machine := newEngine(t)
	engine.Restore(model.Snapshot{Mode: model.ModeFocus, TimeLeft: 0, CurrentCycle: 1})

	engine.Start()

	assert.False(t, engine.State().IsRunning)
	assert.Equal(t, 0, engine.State().TimeLeft)
	assert.Equal(t, 0, fake.Pending())
	assert.Equal(t, 0, machine.State().TotalSessions)
}

func TestAutoStartAfterDelay(t *testing.T) {
	engine, fake, _ := newEngine(t)
	engine.SetAutoStartNext(true)

	engine.Start()
	fake.Advance(1500 * time.Second)
	assert.False(t, engine.State().IsRunning)
	assert.True(t, engine.AutoStartPending())

	fake.Advance(2999 * time.Millisecond)
	assert.False(t, engine.State().IsRunning)

	fake.Advance(time.Millisecond)
	state := engine.State()
	assert.True(t, state.IsRunning)
	assert.Equal(t, model.ModeShortBreak, state.Mode)
	assert.Equal(t, 300, state.TimeLeft)
	assert.False(t, engine.AutoStartPending())

	fake.Advance(time.Second)
	assert.Equal(t, 299, engine.State().TimeLeft)
}

func TestAutoStartCancelledByControls(t *testing.T) {
	cancels := map[string]func(*countdown.Engine){
		"pause":   (*countdown.Engine).Pause,
		"reset":   (*countdown.Engine).Reset,
		"setMode": func(e *countdown.Engine) { e.SetMode(model.ModeFocus) },
		"disable": func(e *countdown.Engine) { e.SetAutoStartNext(false) },
	}

	for name, cancel := range cancels {
		t.Run(name, func(t *testing.T) {
			engine, fake, _ := newEngine(t)
			engine.SetAutoStartNext(true)
			engine.Start()
			fake.Advance(1500 * time.Second)
			fake.Advance(time.Second)

			cancel(engine)
			fake.Advance(10 * time.Second)

			assert.False(t, engine.State().IsRunning)
			assert.False(t, engine.AutoStartPending())
			assert.Equal(t, 0, fake.Pending())
		})
	}
}

func TestManualStartDuringDelayWindowKeepsOneTickSource(t *testing.T) {
	engine, fake, _ := newEngine(t)
	engine.SetAutoStartNext(true)
	engine.Start()
	fake.Advance(1500 * time.Second)

	engine.Start()
	fake.Advance(5 * time.Second)

	assert.Equal(t, 1, fake.Pending())
	assert.Equal(t, 295, engine.State().TimeLeft)
}

func TestSetModeInformsCoordinator(t *testing.T) {
	engine, _, machine := newEngine(t)

	engine.SetMode(model.ModeLongBreak)
	assert.True(t, machine.State().IsOnBreak)

	engine.SetMode(model.ModeFocus)
	assert.False(t, machine.State().IsOnBreak)
	assert.Equal(t, 0, machine.State().TotalSessions)
}

func TestUnknownModeIgnored(t *testing.T) {
	engine, _, _ := newEngine(t)
	before := engine.Snapshot()

	engine.SetMode(model.Mode("nap"))

	assert.Equal(t, before, engine.Snapshot())
}

func TestRestoreRunningResumesTicking(t *testing.T) {
	engine, fake, _ := newEngine(t)

	engine.Restore(model.Snapshot{
		Mode:              model.ModeShortBreak,
		TimeLeft:          120,
		IsRunning:         true,
		SessionsCompleted: 2,
		CurrentCycle:      3,
		TotalSessions:     10,
		IsOnBreak:         true,
		AutoStartNext:     true,
	})
	snapshot := engine.Snapshot()
	assert.True(t, snapshot.IsRunning)
	assert.Equal(t, 2, snapshot.SessionsCompleted)
	assert.Equal(t, 3, snapshot.CurrentCycle)
	assert.Equal(t, 10, snapshot.TotalSessions)
	assert.True(t, snapshot.AutoStartNext)

	fake.Advance(20 * time.Second)
	assert.Equal(t, 100, engine.State().TimeLeft)
}

func TestWithoutCoordinatorStaysInMode(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	engine := countdown.New(fake, countdown.Config{}, nil)
	defer engine.Close()
	engine.SetMode(model.ModeShortBreak)

	engine.Start()
	fake.Advance(300 * time.Second)

	state := engine.State()
	assert.Equal(t, model.ModeShortBreak, state.Mode)
	assert.Equal(t, 300, state.TimeLeft)
	assert.False(t, state.IsRunning)
}

func TestClosedEngineIgnoresStart(t *testing.T) {
	engine, fake, _ := newEngine(t)
	engine.Start()
	engine.Close()

	engine.Start()
	fake.Advance(5 * time.Second)

	assert.False(t, engine.State().IsRunning)
	assert.Equal(t, 1500, engine.State().TimeLeft)
	assert.Equal(t, 0, fake.Pending())
}

func TestDoCancellingAutoStart(t *testing.T) {
	engine, fake, machine := newEngine(t)
	engine.SetAutoStartNext(true)
	engine.Start()
	fake.Advance(1500 * time.Second)
	require.True(t, engine.AutoStartPending())

	engine.DoCancellingAutoStart(func(state model.TimerState) {
		assert.Equal(t, model.ModeShortBreak, state.Mode)
		machine.ResetCycle()
	})
	fake.Advance(10 * time.Second)

	assert.False(t, engine.AutoStartPending())
	assert.False(t, engine.State().IsRunning)
	assert.Equal(t, 0, fake.Pending())
}

func TestOnAutoStartSkipsCancelledStarts(t *testing.T) {
	engine, fake, _ := newEngine(t)
	engine.SetAutoStartNext(true)
	fired := 0
	engine.OnAutoStart(func(snapshot model.Snapshot) {
		fired++
		assert.True(t, snapshot.IsRunning)
	})

	engine.Start()
	fake.Advance(1500 * time.Second)
	engine.Pause()
	fake.Advance(3 * time.Second)
	assert.Equal(t, 0, fired)

	engine.SetMode(model.ModeShortBreak)
	engine.Start()
	fake.Advance((300 + 3) * time.Second)
	assert.Equal(t, 1, fired)
}

func TestReadTakesOneSnapshot(t *testing.T) {
	engine, fake, _ := newEngine(t)
	engine.SetAutoStartNext(true)
	engine.Start()
	fake.Advance(1500 * time.Second)

	engine.Read(func(snapshot model.Snapshot, pending bool) {
		assert.Equal(t, model.ModeShortBreak, snapshot.Mode)
		assert.Equal(t, 1, snapshot.SessionsCompleted)
		assert.True(t, pending)
	})
}
