package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "focusify/internal/errors"
	xlog "focusify/internal/log"
	"focusify/internal/metrics"
	"focusify/internal/model"
	"focusify/internal/notify"
	"focusify/internal/pomodoro"
	"focusify/internal/repository"
	"focusify/internal/store"
)

const completionTimeout = 5 * time.Second

type PomodoroService struct {
	repo      *repository.PomodoroRepository
	snapshots *store.SnapshotStore
	settings  model.PomodoroSettings
	timerOpts []pomodoro.Option
	notifier  notify.Notifier
	now       func() time.Time
	logger    zerolog.Logger

	mu      sync.Mutex
	entries map[string]*timerEntry
	closed  bool
}

// timerEntry serializes service operations for one user. Completion
// listeners take the same lock, so version bumps never interleave.
type timerEntry struct {
	mu    sync.Mutex
	timer *pomodoro.Timer
}

type StateView struct {
	model.View
	Version          int               `json:"version"`
	Display          string            `json:"display"`
	Progress         int               `json:"progress"`
	NextSession      model.NextSession `json:"nextSession"`
	AutoStartPending bool              `json:"autoStartPending"`
	ServerTime       time.Time         `json:"serverTime"`
}

type UpdateSettingsInput struct {
	BaseVersion   int
	AutoStartNext *bool
}

type TodayStats struct {
	Date               string `json:"date"`
	FocusSessions      int    `json:"focusSessions"`
	ShortBreaks        int    `json:"shortBreaks"`
	LongBreaks         int    `json:"longBreaks"`
	FocusSeconds       int    `json:"focusSeconds"`
	FocusReadable      string `json:"focusReadable"`
	TotalSessionsToday int    `json:"totalSessionsToday"`
	CurrentCycle       int    `json:"currentCycle"`
}

type Option func(*PomodoroService)

func WithSettings(settings model.PomodoroSettings) Option {
	return func(s *PomodoroService) {
		s.settings = settings.Normalize()
	}
}

func WithTimerOptions(opts ...pomodoro.Option) Option {
	return func(s *PomodoroService) {
		s.timerOpts = append(s.timerOpts, opts...)
	}
}

func WithNotifier(notifier notify.Notifier) Option {
	return func(s *PomodoroService) {
		s.notifier = notifier
	}
}

// WithNow replaces the wall clock used for day boundaries and timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *PomodoroService) {
		s.now = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *PomodoroService) {
		s.logger = logger
	}
}

func NewPomodoroService(repo *repository.PomodoroRepository, snapshots *store.SnapshotStore, opts ...Option) *PomodoroService {
	s := &PomodoroService{
		repo:      repo,
		snapshots: snapshots,
		settings:  model.DefaultPomodoroSettings(),
		notifier:  notify.Nop{},
		now:       time.Now,
		logger:    xlog.WithComponent("pomodoro"),
		entries:   make(map[string]*timerEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PomodoroService) GetState(ctx context.Context, userID string) (*StateView, *apperrors.APIError) {
	entry, apiErr := s.entry(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	version, apiErr := s.version(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	view := s.toStateView(entry.timer, version)
	return &view, nil
}

func (s *PomodoroService) Start(ctx context.Context, userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.mutate(ctx, userID, baseVersion, func(t *pomodoro.Timer) *apperrors.APIError {
		t.Start()
		return nil
	})
}

func (s *PomodoroService) Pause(ctx context.Context, userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.mutate(ctx, userID, baseVersion, func(t *pomodoro.Timer) *apperrors.APIError {
		t.Pause()
		return nil
	})
}

func (s *PomodoroService) Reset(ctx context.Context, userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.mutate(ctx, userID, baseVersion, func(t *pomodoro.Timer) *apperrors.APIError {
		t.Reset()
		return nil
	})
}

func (s *PomodoroService) SwitchMode(ctx context.Context, userID, mode string, baseVersion int) (*StateView, *apperrors.APIError) {
	parsed, ok := model.ParseMode(mode)
	if !ok {
		return nil, apperrors.BadRequest("invalid_mode", "mode must be one of focus, short-break, long-break")
	}
	return s.mutate(ctx, userID, baseVersion, func(t *pomodoro.Timer) *apperrors.APIError {
		t.SetMode(parsed)
		return nil
	})
}

func (s *PomodoroService) ResetCycle(ctx context.Context, userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.mutate(ctx, userID, baseVersion, func(t *pomodoro.Timer) *apperrors.APIError {
		t.ResetCycle()
		return nil
	})
}

func (s *PomodoroService) NewDay(ctx context.Context, userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	return s.mutate(ctx, userID, baseVersion, func(t *pomodoro.Timer) *apperrors.APIError {
		t.NewDay()
		return nil
	})
}

func (s *PomodoroService) UpdateSettings(ctx context.Context, userID string, input UpdateSettingsInput) (*StateView, *apperrors.APIError) {
	if input.AutoStartNext == nil {
		return nil, apperrors.BadRequest("invalid_settings", "autoStartNext is required")
	}
	return s.mutate(ctx, userID, input.BaseVersion, func(t *pomodoro.Timer) *apperrors.APIError {
		t.SetAutoStartNext(*input.AutoStartNext)
		return nil
	})
}

// Clear resets the timer and cycle state and removes the stored snapshot.
// History is kept.
func (s *PomodoroService) Clear(ctx context.Context, userID string, baseVersion int) (*StateView, *apperrors.APIError) {
	entry, apiErr := s.entry(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if apiErr := s.ensureVersion(ctx, userID, baseVersion, entry.timer); apiErr != nil {
		return nil, apiErr
	}

	entry.timer.ClearAll()
	if err := s.snapshots.Clear(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("clear snapshot failed")
		return nil, apperrors.Internal("failed to clear state")
	}

	version, err := s.repo.BumpVersion(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to update state")
	}
	view := s.toStateView(entry.timer, version)
	return &view, nil
}

func (s *PomodoroService) GetHistory(ctx context.Context, userID string, limit int) ([]model.PomodoroSession, *apperrors.APIError) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sessions, err := s.repo.ListSessions(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list sessions")
	}
	return sessions, nil
}

// TodayStats summarizes the sessions completed since local midnight.
func (s *PomodoroService) TodayStats(ctx context.Context, userID string) (*TodayStats, *apperrors.APIError) {
	entry, apiErr := s.entry(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	now := s.now()
	since := startOfDay(now)
	until := since.AddDate(0, 0, 1)

	counts := make(map[model.Mode]int, len(model.Modes))
	for _, mode := range model.Modes {
		count, err := s.repo.CountCompleted(ctx, userID, mode, since, until)
		if err != nil {
			return nil, apperrors.Internal("failed to count sessions")
		}
		counts[mode] = count
	}

	snapshot := entry.timer.Snapshot()
	focusSeconds := counts[model.ModeFocus] * model.ModeFocus.Seconds()
	return &TodayStats{
		Date:               since.Format(time.DateOnly),
		FocusSessions:      counts[model.ModeFocus],
		ShortBreaks:        counts[model.ModeShortBreak],
		LongBreaks:         counts[model.ModeLongBreak],
		FocusSeconds:       focusSeconds,
		FocusReadable:      model.FormatReadable(focusSeconds),
		TotalSessionsToday: snapshot.TotalSessions,
		CurrentCycle:       snapshot.CurrentCycle,
	}, nil
}

// Close saves every loaded timer and stops it. Running timers are saved as
// running so they resume on the next load.
func (s *PomodoroService) Close(ctx context.Context) error {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[string]*timerEntry)
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for userID, entry := range entries {
		entry.mu.Lock()
		if err := s.snapshots.Save(ctx, userID, entry.timer.Snapshot()); err != nil {
			errs = append(errs, err)
		}
		entry.mu.Unlock()
		entry.timer.Close()
		metrics.TimersLoaded.Dec()
	}
	return errors.Join(errs...)
}

func (s *PomodoroService) mutate(
	ctx context.Context,
	userID string,
	baseVersion int,
	op func(t *pomodoro.Timer) *apperrors.APIError,
) (*StateView, *apperrors.APIError) {
	entry, apiErr := s.entry(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if apiErr := s.ensureVersion(ctx, userID, baseVersion, entry.timer); apiErr != nil {
		return nil, apiErr
	}
	if apiErr := op(entry.timer); apiErr != nil {
		return nil, apiErr
	}

	version, err := s.repo.BumpVersion(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to update state")
	}
	if err := s.persist(ctx, userID, entry.timer); err != nil {
		return nil, apperrors.Internal("failed to persist state")
	}

	view := s.toStateView(entry.timer, version)
	return &view, nil
}

func (s *PomodoroService) ensureVersion(ctx context.Context, userID string, baseVersion int, t *pomodoro.Timer) *apperrors.APIError {
	version, apiErr := s.version(ctx, userID)
	if apiErr != nil {
		return apiErr
	}
	if baseVersion <= 0 || baseVersion == version {
		return nil
	}
	view := s.toStateView(t, version)
	return apperrors.Conflict("state_conflict", "state changed on another device", map[string]interface{}{
		"state": view,
	})
}

func (s *PomodoroService) version(ctx context.Context, userID string) (int, *apperrors.APIError) {
	version, err := s.repo.GetVersion(ctx, userID)
	if err == repository.ErrNotFound {
		return 0, apperrors.NotFound("state_not_found", "pomodoro state not found")
	}
	if err != nil {
		return 0, apperrors.Internal("failed to get state")
	}
	return version, nil
}

// entry returns the user's timer, restoring it from the snapshot store on
// first use.
func (s *PomodoroService) entry(ctx context.Context, userID string) (*timerEntry, *apperrors.APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, apperrors.ServiceUnavailable("shutting_down", "service is shutting down")
	}
	if entry, ok := s.entries[userID]; ok {
		return entry, nil
	}

	logger := s.logger.With().Str("user_id", userID).Logger()
	snapshot, found, err := s.snapshots.Load(ctx, userID)
	if err != nil {
		// Unreadable state falls back to a fresh timer.
		logger.Warn().Err(err).Msg("stored snapshot unreadable, starting fresh")
	}

	timer := pomodoro.New(s.settings, s.timerOpts...)
	entry := &timerEntry{timer: timer}
	// Listeners go in before the restore, which may resume a running session.
	timer.OnComplete(func(event model.SessionCompletionEvent) {
		s.handleCompletion(userID, entry, event)
	})
	timer.OnAutoStart(func(model.Snapshot) {
		s.handleAutoStart(userID, entry)
	})

	dirty := false
	if found {
		repairs, newDay := timer.RestoreOn(snapshot, s.now())
		for _, repair := range repairs {
			logger.Warn().Str("repair", repair).Msg("restored snapshot corrected")
		}
		metrics.RestoreRepairsTotal.Add(float64(len(repairs)))
		if newDay {
			logger.Info().Time("saved_at", snapshot.SavedAt).Msg("new day, cycle state reset")
		}
		dirty = len(repairs) > 0 || newDay
	}

	s.entries[userID] = entry
	metrics.TimersLoaded.Inc()

	if dirty {
		if err := s.persist(ctx, userID, timer); err != nil {
			logger.Warn().Err(err).Msg("saving corrected snapshot failed")
		}
	}
	return entry, nil
}

// handleCompletion runs on the clock's goroutine after the countdown has
// already moved to the next mode.
func (s *PomodoroService) handleCompletion(userID string, entry *timerEntry, event model.SessionCompletionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	logger := s.logger.With().
		Str("user_id", userID).
		Str("completed_mode", string(event.CompletedMode)).
		Str("next_mode", string(event.NextMode)).
		Logger()

	entry.mu.Lock()
	if _, err := s.repo.BumpVersion(ctx, userID); err != nil {
		logger.Error().Err(err).Msg("bump version after completion failed")
	}
	if err := s.persist(ctx, userID, entry.timer); err != nil {
		logger.Error().Err(err).Msg("save snapshot after completion failed")
	}
	entry.mu.Unlock()

	if err := s.recordSession(ctx, userID, event); err != nil {
		metrics.PersistFailuresTotal.WithLabelValues("history").Inc()
		logger.Error().Err(err).Msg("record completed session failed")
	}

	metrics.SessionsCompletedTotal.WithLabelValues(string(event.CompletedMode)).Inc()
	if event.IsNewCycle {
		metrics.CyclesCompletedTotal.Inc()
	}
	logger.Info().
		Int("cycle", event.CompletedCycle).
		Int("session", event.CompletedSession).
		Int("total_today", event.TotalSessionsToday).
		Msg(event.Message)

	if err := s.notifier.Notify(ctx, notify.MessageFor(event)); err != nil {
		logger.Warn().Err(err).Msg("notification failed")
	}
}

// handleAutoStart saves the snapshot once a delayed start has fired, so a
// crash afterwards restores a running session. The version is unchanged.
func (s *PomodoroService) handleAutoStart(userID string, entry *timerEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := s.persist(ctx, userID, entry.timer); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("save snapshot after auto-start failed")
	}
}

func (s *PomodoroService) recordSession(ctx context.Context, userID string, event model.SessionCompletionEvent) error {
	endedAt := event.CompletedAt
	if endedAt.IsZero() {
		endedAt = s.now()
	}
	endedAt = endedAt.UTC()
	duration := event.CompletedMode.Seconds()
	now := s.now().UTC()

	session := model.PomodoroSession{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		Mode:                   string(event.CompletedMode),
		PlannedDurationSeconds: duration,
		ActualDurationSeconds:  duration,
		SessionNumber:          event.CompletedSession,
		CycleNumber:            event.CompletedCycle,
		StartedAt:              endedAt.Add(-event.CompletedMode.Duration()),
		EndedAt:                &endedAt,
		Status:                 model.SessionStatusCompleted,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	return s.repo.InsertSession(ctx, &session)
}

func (s *PomodoroService) persist(ctx context.Context, userID string, t *pomodoro.Timer) error {
	if err := s.snapshots.Save(ctx, userID, t.Snapshot()); err != nil {
		metrics.PersistFailuresTotal.WithLabelValues("snapshot").Inc()
		s.logger.Error().Err(err).Str("user_id", userID).Msg("save snapshot failed")
		return err
	}
	return nil
}

func (s *PomodoroService) toStateView(t *pomodoro.Timer, version int) StateView {
	status := t.Status()
	view := status.View
	return StateView{
		View:             view,
		Version:          version,
		Display:          model.FormatClock(view.TimeLeft),
		Progress:         model.Progress(view.TimeLeft, view.Mode.Seconds()),
		NextSession:      status.NextSession,
		AutoStartPending: status.AutoStartPending,
		ServerTime:       s.now().UTC(),
	}
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
