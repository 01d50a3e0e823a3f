// Package cycle tracks progress through pomodoro cycles: focus sessions
// completed in the current cycle, the cycle number, the lifetime total and
// whether the timer is on a break.
//
// State transitions are expressed as a pure reducer over model.CycleState.
// Machine wraps the reducer with the configured sessions-per-cycle. Machine
// is not safe for concurrent use; the countdown engine serializes access.
package cycle

import "focusify/internal/model"

// ActionType tags a cycle transition.
type ActionType string

const (
	ActionSessionCompleted ActionType = "session_completed"
	ActionCycleReset       ActionType = "cycle_reset"
	ActionNewDay           ActionType = "new_day"
	ActionManualModeChange ActionType = "manual_mode_change"
)

type Action struct {
	Type ActionType
	Mode model.Mode
}

// Reduce returns the state that follows state under action. It never
// mutates its input.
func Reduce(state model.CycleState, action Action, sessionsPerCycle int) model.CycleState {
	if sessionsPerCycle < 1 {
		sessionsPerCycle = model.DefaultSessionsPerCycle
	}

	switch action.Type {
	case ActionSessionCompleted:
		switch action.Mode {
		case model.ModeFocus:
			completed := state.SessionsCompleted + 1
			rolled := completed >= sessionsPerCycle
			next := state
			next.TotalSessions++
			next.IsOnBreak = true
			next.CycleCompleted = rolled
			if rolled {
				next.SessionsCompleted = 0
				next.CurrentCycle++
			} else {
				next.SessionsCompleted = completed
			}
			return next
		case model.ModeShortBreak, model.ModeLongBreak:
			next := state
			next.IsOnBreak = false
			next.CycleCompleted = false
			return next
		}
		return state

	case ActionCycleReset:
		next := state
		next.SessionsCompleted = 0
		next.CurrentCycle = 1
		next.CycleCompleted = false
		return next

	case ActionNewDay:
		return model.NewCycleState()

	case ActionManualModeChange:
		next := state
		next.IsOnBreak = action.Mode.IsBreak()
		next.CycleCompleted = false
		return next
	}
	return state
}

// Project computes what follows completedMode from state without changing it.
func Project(state model.CycleState, completedMode model.Mode, sessionsPerCycle int) model.NextSession {
	if sessionsPerCycle < 1 {
		sessionsPerCycle = model.DefaultSessionsPerCycle
	}

	switch completedMode {
	case model.ModeFocus:
		sessionNumber := state.SessionsCompleted + 1
		if sessionNumber >= sessionsPerCycle {
			return model.NextSession{
				Mode:          model.ModeLongBreak,
				SessionNumber: sessionNumber,
				CycleNumber:   state.CurrentCycle,
				IsNewCycle:    true,
				Message:       model.MessageCycleCompleted,
			}
		}
		return model.NextSession{
			Mode:          model.ModeShortBreak,
			SessionNumber: sessionNumber,
			CycleNumber:   state.CurrentCycle,
			Message:       model.MessageFocusCompleted,
		}
	case model.ModeShortBreak:
		return model.NextSession{
			Mode:          model.ModeFocus,
			SessionNumber: state.SessionsCompleted + 1,
			CycleNumber:   state.CurrentCycle,
			Message:       model.MessageShortBreakCompleted,
		}
	case model.ModeLongBreak:
		return model.NextSession{
			Mode:          model.ModeFocus,
			SessionNumber: 1,
			CycleNumber:   state.CurrentCycle,
			IsNewCycle:    true,
			Message:       model.MessageLongBreakCompleted,
		}
	}
	return model.NextSession{
		Mode:          model.ModeFocus,
		SessionNumber: 1,
		CycleNumber:   1,
		Message:       "Let's start focusing!",
	}
}

// Machine holds the current cycle state for one timer.
type Machine struct {
	settings model.PomodoroSettings
	state    model.CycleState
}

func NewMachine(settings model.PomodoroSettings) *Machine {
	return &Machine{
		settings: settings.Normalize(),
		state:    model.NewCycleState(),
	}
}

func (m *Machine) Settings() model.PomodoroSettings {
	return m.settings
}

func (m *Machine) State() model.CycleState {
	return m.state
}

// Restore replaces the state wholesale. Callers sanitize first.
func (m *Machine) Restore(state model.CycleState) {
	m.state = state
}

func (m *Machine) NextSession(completedMode model.Mode) model.NextSession {
	return Project(m.state, completedMode, m.settings.SessionsPerCycle)
}

// CompleteSession commits the transition for completedMode. The returned
// event is built from the projection taken before the commit.
func (m *Machine) CompleteSession(completedMode model.Mode) model.SessionCompletionEvent {
	next := m.NextSession(completedMode)
	position, cycleNumber := m.state.SessionsCompleted, m.state.CurrentCycle
	if completedMode == model.ModeFocus {
		position++
	}
	m.dispatch(Action{Type: ActionSessionCompleted, Mode: completedMode})

	return model.SessionCompletionEvent{
		CompletedMode:      completedMode,
		CompletedSession:   position,
		CompletedCycle:     cycleNumber,
		NextMode:           next.Mode,
		SessionNumber:      next.SessionNumber,
		CycleNumber:        next.CycleNumber,
		IsNewCycle:         next.IsNewCycle,
		TotalSessionsToday: m.state.TotalSessions,
		Message:            next.Message,
	}
}

func (m *Machine) ResetCycle() {
	m.dispatch(Action{Type: ActionCycleReset})
}

func (m *Machine) HandleModeChange(mode model.Mode) {
	m.dispatch(Action{Type: ActionManualModeChange, Mode: mode})
}

func (m *Machine) NewDay() {
	m.dispatch(Action{Type: ActionNewDay})
}

// Progress is the display percentage of the current cycle.
func (m *Machine) Progress() float64 {
	return model.CycleProgress(m.state.SessionsCompleted, m.settings.SessionsPerCycle)
}

func (m *Machine) NextSessionNumber() int {
	return m.state.SessionsCompleted + 1
}

func (m *Machine) dispatch(action Action) {
	m.state = Reduce(m.state, action, m.settings.SessionsPerCycle)
}
