package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusify/internal/clock"
	"focusify/internal/config"
	"focusify/internal/model"
	"focusify/internal/notify"
	"focusify/internal/pomodoro"
	"focusify/internal/store"
)

func execute(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", configPath, "--log-level", "disabled"}, args...))
	require.NoError(t, root.Execute())
	return out.String()
}

func testApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultCLI()
	cfg.StateDir = filepath.Join(dir, "state")
	return &app{
		cfg:        cfg,
		configPath: filepath.Join(dir, "config.yaml"),
		snapshots:  store.NewSnapshotStore(store.NewFile(cfg.StateDir)),
		logger:     zerolog.Nop(),
		out:        &bytes.Buffer{},
		now:        time.Now,
	}
}

func TestStatusOnFreshInstall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out := execute(t, path, "status")

	assert.Contains(t, out, "Focus Time  25:00 (paused)")
	assert.Contains(t, out, "Cycle 1: 0/4 sessions (0%)")
	assert.Contains(t, out, "After this: Short Break. "+model.MessageFocusCompleted)
}

func TestStateCommandsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	a, err := loadApp(&rootOptions{configPath: path, logLevel: "disabled"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.NoError(t, a.snapshots.Save(context.Background(), owner, model.Snapshot{
		Mode:              model.ModeShortBreak,
		TimeLeft:          120,
		SessionsCompleted: 2,
		CurrentCycle:      3,
		TotalSessions:     10,
		IsOnBreak:         true,
	}))

	assert.Contains(t, execute(t, path, "reset-cycle"), "Cycle reset. 10 sessions today.")
	assert.Contains(t, execute(t, path, "status"), "Cycle 1: 0/4 sessions")

	execute(t, path, "new-day")
	assert.Contains(t, execute(t, path, "status"), "Sessions today: 0")

	execute(t, path, "clear")
	_, found, err := a.snapshots.Load(context.Background(), owner)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConfigInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focusify", "config.yaml")

	assert.Contains(t, execute(t, path, "config", "init"), "Wrote "+path)

	cfg, err := config.LoadCLI(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultCLI().SessionsPerCycle, cfg.SessionsPerCycle)
	assert.Contains(t, execute(t, path, "config"), "sessions_per_cycle: 4")
}

func TestRunTimerStopsAfterCompletion(t *testing.T) {
	a := testApp(t)
	fake := clock.NewFake(time.Now())
	timer := pomodoro.New(a.cfg.Settings(), pomodoro.WithClock(fake))
	t.Cleanup(timer.Close)

	events := timer.Subscribe(4)
	timer.Start()

	done := make(chan error, 1)
	go func() {
		done <- a.runTimer(context.Background(), timer, events, notify.NewWriter(a.out, false), nil)
	}()
	fake.Advance(25 * time.Minute)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runTimer did not return after completion")
	}

	out := a.out.(*bytes.Buffer).String()
	assert.Contains(t, out, "Focus Session Complete! Great work! Time for a short break.")
	assert.Contains(t, out, "Next: Short Break (05:00).")

	saved, found, err := a.snapshots.Load(context.Background(), owner)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.ModeShortBreak, saved.Mode)
	assert.Equal(t, 1, saved.SessionsCompleted)
}

func TestRunTimerPausesOnInterrupt(t *testing.T) {
	a := testApp(t)
	fake := clock.NewFake(time.Now())
	timer := pomodoro.New(a.cfg.Settings(), pomodoro.WithClock(fake))
	t.Cleanup(timer.Close)

	events := timer.Subscribe(4)
	timer.Start()
	fake.Advance(90 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.runTimer(ctx, timer, events, notify.Nop{}, nil))

	saved, found, err := a.snapshots.Load(context.Background(), owner)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, saved.IsRunning)
	assert.Equal(t, 1410, saved.TimeLeft)
}
