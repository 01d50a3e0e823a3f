package model

import (
	"fmt"
	"time"
)

// Snapshot is the flat, persistable record of a pomodoro timer: the
// countdown state, the cycle state and the auto-start flag.
type Snapshot struct {
	Mode              Mode      `json:"mode" yaml:"mode"`
	TimeLeft          int       `json:"timeLeft" yaml:"time_left"`
	IsRunning         bool      `json:"isRunning" yaml:"is_running"`
	SessionsCompleted int       `json:"sessionsCompleted" yaml:"sessions_completed"`
	CurrentCycle      int       `json:"currentCycle" yaml:"current_cycle"`
	TotalSessions     int       `json:"totalSessions" yaml:"total_sessions"`
	IsOnBreak         bool      `json:"isOnBreak" yaml:"is_on_break"`
	CycleCompleted    bool      `json:"cycleCompleted,omitempty" yaml:"cycle_completed,omitempty"`
	AutoStartNext     bool      `json:"autoStartNext" yaml:"auto_start_next"`
	SavedAt           time.Time `json:"savedAt,omitempty" yaml:"saved_at,omitempty"`
}

// View is the read-only display snapshot: a Snapshot plus derived fields.
type View struct {
	Snapshot
	CycleProgress    float64 `json:"cycleProgress"`
	SessionsPerCycle int     `json:"sessionsPerCycle"`
}

// DefaultSnapshot is the state of a freshly started application.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Mode:         ModeFocus,
		TimeLeft:     ModeFocus.Seconds(),
		CurrentCycle: 1,
	}
}

func (s Snapshot) Timer() TimerState {
	return TimerState{Mode: s.Mode, TimeLeft: s.TimeLeft, IsRunning: s.IsRunning}
}

func (s Snapshot) Cycle() CycleState {
	return CycleState{
		SessionsCompleted: s.SessionsCompleted,
		CurrentCycle:      s.CurrentCycle,
		TotalSessions:     s.TotalSessions,
		IsOnBreak:         s.IsOnBreak,
		CycleCompleted:    s.CycleCompleted,
	}
}

// Sanitize repairs a restored snapshot so that it satisfies the timer and
// cycle invariants. Every repair is described in the returned slice so the
// caller can log it.
func (s Snapshot) Sanitize(sessionsPerCycle int) (Snapshot, []string) {
	if sessionsPerCycle < 1 {
		sessionsPerCycle = DefaultSessionsPerCycle
	}
	var repairs []string

	if !s.Mode.Valid() {
		repairs = append(repairs, fmt.Sprintf("mode %q replaced with %q", s.Mode, ModeFocus))
		s.Mode = ModeFocus
		s.TimeLeft = ModeFocus.Seconds()
	}
	if s.TimeLeft < 0 || s.TimeLeft > s.Mode.Seconds() {
		repairs = append(repairs, fmt.Sprintf("timeLeft %d replaced with %d", s.TimeLeft, s.Mode.Seconds()))
		s.TimeLeft = s.Mode.Seconds()
	}
	if s.IsRunning && s.TimeLeft == 0 {
		repairs = append(repairs, "running flag cleared at zero time left")
		s.IsRunning = false
	}
	if s.SessionsCompleted < 0 || s.SessionsCompleted >= sessionsPerCycle {
		repairs = append(repairs, fmt.Sprintf("sessionsCompleted %d replaced with 0", s.SessionsCompleted))
		s.SessionsCompleted = 0
	}
	if s.CurrentCycle < 1 {
		repairs = append(repairs, fmt.Sprintf("currentCycle %d replaced with 1", s.CurrentCycle))
		s.CurrentCycle = 1
	}
	if s.CycleCompleted && (s.SessionsCompleted != 0 || !s.IsOnBreak) {
		repairs = append(repairs, "cycleCompleted cleared outside a post-cycle break")
		s.CycleCompleted = false
	}
	if s.TotalSessions < 0 {
		repairs = append(repairs, fmt.Sprintf("totalSessions %d replaced with 0", s.TotalSessions))
		s.TotalSessions = 0
	}
	return s, repairs
}

// CycleProgress returns completed/perCycle as a percentage.
func CycleProgress(completed, perCycle int) float64 {
	if perCycle <= 0 {
		return 0
	}
	return float64(completed) / float64(perCycle) * 100
}
