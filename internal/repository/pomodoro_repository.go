package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"focusify/internal/model"
)

type PomodoroRepository struct {
	db *sql.DB
}

func NewPomodoroRepository(db *sql.DB) *PomodoroRepository {
	return &PomodoroRepository{db: db}
}

func (r *PomodoroRepository) CreateInitialState(ctx context.Context, userID string) error {
	now := formatTime(time.Now())
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO pomodoro_states (user_id, version, updated_at) VALUES (?, ?, ?)`,
		userID,
		1,
		now,
	)
	if err != nil {
		return fmt.Errorf("create initial state: %w", err)
	}
	return nil
}

func (r *PomodoroRepository) GetVersion(ctx context.Context, userID string) (int, error) {
	var version int
	err := r.db.QueryRowContext(
		ctx,
		`SELECT version FROM pomodoro_states WHERE user_id = ?`,
		userID,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get state version: %w", err)
	}
	return version, nil
}

// BumpVersion increments the state version and returns the new value.
func (r *PomodoroRepository) BumpVersion(ctx context.Context, userID string) (int, error) {
	now := formatTime(time.Now())
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE pomodoro_states SET version = version + 1, updated_at = ? WHERE user_id = ?`,
		now,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("bump state version: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return 0, ErrNotFound
	}
	return r.GetVersion(ctx, userID)
}

func (r *PomodoroRepository) InsertSession(ctx context.Context, session *model.PomodoroSession) error {
	var endedAt interface{}
	if session.EndedAt != nil {
		endedAt = formatTime(*session.EndedAt)
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO pomodoro_sessions (
			id, user_id, mode, planned_duration_seconds, actual_duration_seconds,
			session_number, cycle_number, started_at, ended_at, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.Mode,
		session.PlannedDurationSeconds,
		session.ActualDurationSeconds,
		session.SessionNumber,
		session.CycleNumber,
		formatTime(session.StartedAt),
		endedAt,
		session.Status,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *PomodoroRepository) ListSessions(ctx context.Context, userID string, limit int) ([]model.PomodoroSession, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, mode, planned_duration_seconds, actual_duration_seconds,
		        session_number, cycle_number, started_at, ended_at, status, created_at, updated_at
		 FROM pomodoro_sessions
		 WHERE user_id = ?
		 ORDER BY started_at DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.PomodoroSession, 0, limit)
	for rows.Next() {
		session, scanErr := scanPomodoroSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// CountCompleted counts completed sessions of mode that ended in [since, until).
func (r *PomodoroRepository) CountCompleted(ctx context.Context, userID string, mode model.Mode, since, until time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1)
		 FROM pomodoro_sessions
		 WHERE user_id = ? AND mode = ? AND status = ? AND ended_at >= ? AND ended_at < ?`,
		userID,
		string(mode),
		model.SessionStatusCompleted,
		formatTime(since),
		formatTime(until),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed sessions: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPomodoroSession(s scanner) (*model.PomodoroSession, error) {
	session := model.PomodoroSession{}
	var startedAt string
	var endedAt sql.NullString
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&session.ID,
		&session.UserID,
		&session.Mode,
		&session.PlannedDurationSeconds,
		&session.ActualDurationSeconds,
		&session.SessionNumber,
		&session.CycleNumber,
		&startedAt,
		&endedAt,
		&session.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	parsedStartedAt, err := parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse session started_at: %w", err)
	}
	session.StartedAt = parsedStartedAt

	if endedAt.Valid {
		parsedEndedAt, parseErr := parseTime(endedAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse session ended_at: %w", parseErr)
		}
		session.EndedAt = &parsedEndedAt
	}

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse session created_at: %w", err)
	}
	session.CreatedAt = parsedCreatedAt

	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse session updated_at: %w", err)
	}
	session.UpdatedAt = parsedUpdatedAt

	return &session, nil
}
