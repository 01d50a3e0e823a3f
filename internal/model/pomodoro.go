package model

import "time"

// Mode is the kind of session being timed.
type Mode string

const (
	ModeFocus      Mode = "focus"
	ModeShortBreak Mode = "short-break"
	ModeLongBreak  Mode = "long-break"
)

const (
	DefaultFocusDurationSeconds      = 25 * 60
	DefaultShortBreakDurationSeconds = 5 * 60
	DefaultLongBreakDurationSeconds  = 15 * 60

	DefaultSessionsPerCycle = 4
)

// Messages attached to a NextSession projection. Display only.
const (
	MessageFocusCompleted      = "Great focus session! Time for a break."
	MessageShortBreakCompleted = "Break over! Ready for another focus session?"
	MessageLongBreakCompleted  = "Long break finished! Starting a new cycle."
	MessageCycleCompleted      = "Cycle complete! You've earned a long break."
)

// Modes lists every valid mode in display order.
var Modes = []Mode{ModeFocus, ModeShortBreak, ModeLongBreak}

// Valid reports whether m is one of the three known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeFocus, ModeShortBreak, ModeLongBreak:
		return true
	}
	return false
}

// IsBreak reports whether m is a break mode.
func (m Mode) IsBreak() bool {
	return m == ModeShortBreak || m == ModeLongBreak
}

// Seconds returns the nominal duration of the mode. Unknown modes fall back
// to the focus duration.
func (m Mode) Seconds() int {
	switch m {
	case ModeShortBreak:
		return DefaultShortBreakDurationSeconds
	case ModeLongBreak:
		return DefaultLongBreakDurationSeconds
	default:
		return DefaultFocusDurationSeconds
	}
}

// Duration is Seconds as a time.Duration.
func (m Mode) Duration() time.Duration {
	return time.Duration(m.Seconds()) * time.Second
}

// Label returns the display name of the mode.
func (m Mode) Label() string {
	switch m {
	case ModeFocus:
		return "Focus Time"
	case ModeShortBreak:
		return "Short Break"
	case ModeLongBreak:
		return "Long Break"
	default:
		return "Timer"
	}
}

// ParseMode accepts the wire value of a mode.
func ParseMode(raw string) (Mode, bool) {
	m := Mode(raw)
	return m, m.Valid()
}

type TimerState struct {
	Mode      Mode `json:"mode"`
	TimeLeft  int  `json:"timeLeft"`
	IsRunning bool `json:"isRunning"`
}

// NewTimerState returns an idle timer positioned at the start of mode.
func NewTimerState(mode Mode) TimerState {
	if !mode.Valid() {
		mode = ModeFocus
	}
	return TimerState{Mode: mode, TimeLeft: mode.Seconds()}
}

type CycleState struct {
	SessionsCompleted int  `json:"sessionsCompleted"`
	CurrentCycle      int  `json:"currentCycle"`
	TotalSessions     int  `json:"totalSessions"`
	IsOnBreak         bool `json:"isOnBreak"`
	// CycleCompleted is set by the focus completion that rolled the cycle
	// over and cleared by the next transition.
	CycleCompleted bool `json:"cycleCompleted"`
}

// NewCycleState returns the state of a fresh day.
func NewCycleState() CycleState {
	return CycleState{CurrentCycle: 1}
}

type PomodoroSettings struct {
	SessionsPerCycle int  `json:"sessionsPerCycle" yaml:"sessions_per_cycle"`
	AutoStartNext    bool `json:"autoStartNext" yaml:"auto_start_next"`
	AutoStartBreaks  bool `json:"autoStartBreaks" yaml:"auto_start_breaks"`
	LongBreakAfter   int  `json:"longBreakAfter" yaml:"long_break_after"`
}

func DefaultPomodoroSettings() PomodoroSettings {
	return PomodoroSettings{
		SessionsPerCycle: DefaultSessionsPerCycle,
		LongBreakAfter:   DefaultSessionsPerCycle,
	}
}

// Normalize fills in defaults for non-positive counts. LongBreakAfter
// always tracks SessionsPerCycle.
func (s PomodoroSettings) Normalize() PomodoroSettings {
	if s.SessionsPerCycle < 1 {
		s.SessionsPerCycle = DefaultSessionsPerCycle
	}
	s.LongBreakAfter = s.SessionsPerCycle
	return s
}

// NextSession is a projection of what follows a completed session. It is
// computed without mutating any state.
type NextSession struct {
	Mode          Mode   `json:"mode"`
	SessionNumber int    `json:"sessionNumber"`
	CycleNumber   int    `json:"cycleNumber"`
	IsNewCycle    bool   `json:"isNewCycle"`
	Message       string `json:"message"`
}

// SessionCompletionEvent describes a finished session. SessionNumber and
// CycleNumber describe the next session; CompletedSession and
// CompletedCycle locate the finished one within its cycle.
type SessionCompletionEvent struct {
	CompletedMode      Mode      `json:"completedMode"`
	CompletedSession   int       `json:"completedSession"`
	CompletedCycle     int       `json:"completedCycle"`
	NextMode           Mode      `json:"nextMode"`
	SessionNumber      int       `json:"sessionNumber"`
	CycleNumber        int       `json:"cycleNumber"`
	IsNewCycle         bool      `json:"isNewCycle"`
	TotalSessionsToday int       `json:"totalSessionsToday"`
	Message            string    `json:"message"`
	CompletedAt        time.Time `json:"completedAt"`
}

type PomodoroSession struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"userId"`
	Mode                   string     `json:"mode"`
	PlannedDurationSeconds int        `json:"plannedDurationSeconds"`
	ActualDurationSeconds  int        `json:"actualDurationSeconds"`
	SessionNumber          int        `json:"sessionNumber"`
	CycleNumber            int        `json:"cycleNumber"`
	StartedAt              time.Time  `json:"startedAt"`
	EndedAt                *time.Time `json:"endedAt,omitempty"`
	Status                 string     `json:"status"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

const (
	SessionStatusCompleted = "completed"
)
