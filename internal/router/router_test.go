package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"focusify/internal/clock"
	"focusify/internal/db"
	"focusify/internal/handler"
	"focusify/internal/pomodoro"
	"focusify/internal/repository"
	"focusify/internal/router"
	"focusify/internal/service"
	"focusify/internal/store"
	"focusify/internal/testutil"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type stateEnvelope struct {
	State struct {
		Version           int    `json:"version"`
		Mode              string `json:"mode"`
		TimeLeft          int    `json:"timeLeft"`
		IsRunning         bool   `json:"isRunning"`
		SessionsCompleted int    `json:"sessionsCompleted"`
		CurrentCycle      int    `json:"currentCycle"`
		TotalSessions     int    `json:"totalSessions"`
		IsOnBreak         bool   `json:"isOnBreak"`
		AutoStartNext     bool   `json:"autoStartNext"`
		Display           string `json:"display"`
		NextSession       struct {
			Mode string `json:"mode"`
		} `json:"nextSession"`
	} `json:"state"`
}

type historyEnvelope struct {
	Sessions []struct {
		Mode          string `json:"mode"`
		Status        string `json:"status"`
		SessionNumber int    `json:"sessionNumber"`
		CycleNumber   int    `json:"cycleNumber"`
	} `json:"sessions"`
}

type statsEnvelope struct {
	Stats struct {
		FocusSessions      int `json:"focusSessions"`
		TotalSessionsToday int `json:"totalSessionsToday"`
	} `json:"stats"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			State struct {
				Version int `json:"version"`
			} `json:"state"`
		} `json:"details"`
	} `json:"error"`
}

func TestPomodoroSyncAndConflict(t *testing.T) {
	engine, _ := setupTestEngine(t)

	user1 := registerUser(t, engine, "user1@example.com", "123456")
	registerUser(t, engine, "user2@example.com", "123456")

	state1 := getState(t, engine, user1.Token)
	if state1.State.Version != 1 {
		t.Fatalf("expected initial version 1, got %d", state1.State.Version)
	}
	if state1.State.Mode != "focus" || state1.State.TimeLeft != 1500 || state1.State.Display != "25:00" {
		t.Fatalf("unexpected initial state: %+v", state1.State)
	}

	status, _ := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/start", user1.Token, map[string]int{
		"baseVersion": state1.State.Version,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", status)
	}

	// Pause with stale version from another device should conflict.
	status, rawConflict := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/pause", user1.Token, map[string]int{
		"baseVersion": state1.State.Version,
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for stale version, got %d", status)
	}

	var conflictResp apiErrorEnvelope
	if err := json.Unmarshal(rawConflict, &conflictResp); err != nil {
		t.Fatalf("unmarshal conflict response: %v", err)
	}
	if conflictResp.Error.Code != "state_conflict" {
		t.Fatalf("expected state_conflict, got %s", conflictResp.Error.Code)
	}

	latestVersion := conflictResp.Error.Details.State.Version
	status, raw := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/pause", user1.Token, map[string]int{
		"baseVersion": latestVersion,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on pause, got %d", status)
	}
	paused := decodeState(t, raw)
	if paused.State.IsRunning {
		t.Fatal("expected timer paused")
	}
	if paused.State.Version != latestVersion+1 {
		t.Fatalf("expected version %d, got %d", latestVersion+1, paused.State.Version)
	}
}

func TestCompletionRecordsHistory(t *testing.T) {
	engine, fake := setupTestEngine(t)

	user1 := registerUser(t, engine, "user1@example.com", "123456")
	user2 := registerUser(t, engine, "user2@example.com", "123456")

	state := getState(t, engine, user1.Token)
	status, _ := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/start", user1.Token, map[string]int{
		"baseVersion": state.State.Version,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", status)
	}

	fake.Advance(25 * time.Minute)

	after := getState(t, engine, user1.Token)
	if after.State.Mode != "short-break" || after.State.TimeLeft != 300 || after.State.IsRunning {
		t.Fatalf("expected idle short break after completion, got %+v", after.State)
	}
	if after.State.SessionsCompleted != 1 || after.State.TotalSessions != 1 || !after.State.IsOnBreak {
		t.Fatalf("unexpected cycle state after completion: %+v", after.State)
	}
	if after.State.Version != state.State.Version+2 {
		t.Fatalf("expected completion to bump version to %d, got %d", state.State.Version+2, after.State.Version)
	}
	if after.State.NextSession.Mode != "focus" {
		t.Fatalf("expected next session focus, got %s", after.State.NextSession.Mode)
	}

	status, rawHistory := requestJSON(t, engine, http.MethodGet, "/api/pomodoro/history?limit=10", user1.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for history, got %d", status)
	}
	var history historyEnvelope
	if err := json.Unmarshal(rawHistory, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history.Sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(history.Sessions))
	}
	if got := history.Sessions[0]; got.Mode != "focus" || got.Status != "completed" || got.SessionNumber != 1 || got.CycleNumber != 1 {
		t.Fatalf("unexpected history entry: %+v", got)
	}

	// User isolation: user2 should still have no history.
	status, rawHistory = requestJSON(t, engine, http.MethodGet, "/api/pomodoro/history", user2.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for user2 history, got %d", status)
	}
	var user2History historyEnvelope
	if err := json.Unmarshal(rawHistory, &user2History); err != nil {
		t.Fatalf("unmarshal user2 history: %v", err)
	}
	if len(user2History.Sessions) != 0 {
		t.Fatalf("expected no sessions for user2, got %d", len(user2History.Sessions))
	}

	status, rawStats := requestJSON(t, engine, http.MethodGet, "/api/pomodoro/stats/today", user1.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for stats, got %d", status)
	}
	var stats statsEnvelope
	if err := json.Unmarshal(rawStats, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.Stats.FocusSessions != 1 || stats.Stats.TotalSessionsToday != 1 {
		t.Fatalf("unexpected stats: %+v", stats.Stats)
	}
}

func TestModeSettingsAndClear(t *testing.T) {
	engine, _ := setupTestEngine(t)
	user := registerUser(t, engine, "user@example.com", "123456")
	version := getState(t, engine, user.Token).State.Version

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/mode", user.Token, map[string]interface{}{
		"baseVersion": version,
		"mode":        "coffee",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", status)
	}
	var errResp apiErrorEnvelope
	if err := json.Unmarshal(raw, &errResp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if errResp.Error.Code != "invalid_mode" {
		t.Fatalf("expected invalid_mode, got %s", errResp.Error.Code)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/pomodoro/mode", user.Token, map[string]interface{}{
		"baseVersion": version,
		"mode":        "long-break",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on mode switch, got %d", status)
	}
	switched := decodeState(t, raw)
	if switched.State.Mode != "long-break" || switched.State.TimeLeft != 900 || !switched.State.IsOnBreak {
		t.Fatalf("unexpected state after mode switch: %+v", switched.State)
	}

	status, raw = requestJSON(t, engine, http.MethodPut, "/api/pomodoro/settings", user.Token, map[string]interface{}{
		"baseVersion":   switched.State.Version,
		"autoStartNext": true,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on settings, got %d", status)
	}
	updated := decodeState(t, raw)
	if !updated.State.AutoStartNext {
		t.Fatal("expected autoStartNext enabled")
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/pomodoro/clear", user.Token, map[string]int{
		"baseVersion": updated.State.Version,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on clear, got %d", status)
	}
	cleared := decodeState(t, raw)
	if cleared.State.Mode != "focus" || cleared.State.TimeLeft != 1500 || cleared.State.IsOnBreak || cleared.State.AutoStartNext {
		t.Fatalf("unexpected state after clear: %+v", cleared.State)
	}
}

func TestMissingBaseVersionRejected(t *testing.T) {
	engine, _ := setupTestEngine(t)
	user := registerUser(t, engine, "user@example.com", "123456")

	for _, path := range []string{"/api/pomodoro/start", "/api/pomodoro/cycle/reset", "/api/pomodoro/day/new"} {
		status, _ := requestJSON(t, engine, http.MethodPost, path, user.Token, map[string]int{})
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 without baseVersion, got %d", path, status)
		}
	}
}

func TestUnauthorized(t *testing.T) {
	engine, _ := setupTestEngine(t)
	status, _ := requestJSON(t, engine, http.MethodGet, "/api/pomodoro/state", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
}

func TestAuthFlow(t *testing.T) {
	engine, fake := setupTestEngine(t)
	registered := registerUser(t, engine, " Reader@Example.com ", "secret123")
	if registered.User.Email != "reader@example.com" {
		t.Fatalf("expected normalized email, got %s", registered.User.Email)
	}

	status, body := requestJSON(t, engine, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "reader@example.com",
		"password": "another123",
	})
	if status != http.StatusConflict || decodeError(t, body).Error.Code != "email_exists" {
		t.Fatalf("expected email_exists conflict, got %d: %s", status, string(body))
	}

	status, _ = requestJSON(t, engine, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "reader@example.com",
		"password": "wrong-password",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", status)
	}

	status, body = requestJSON(t, engine, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "READER@example.com",
		"password": "secret123",
	})
	if status != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", status, string(body))
	}
	var loggedIn authResponse
	if err := json.Unmarshal(body, &loggedIn); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}

	status, body = requestJSON(t, engine, http.MethodGet, "/api/auth/me", loggedIn.Token, nil)
	if status != http.StatusOK || !strings.Contains(string(body), registered.User.ID) {
		t.Fatalf("me failed with status %d: %s", status, string(body))
	}
	if strings.Contains(string(body), "password") {
		t.Fatalf("me leaked password hash: %s", string(body))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Token "+loggedIn.Token)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer scheme, got %d", recorder.Code)
	}

	fake.Advance(25 * time.Hour)
	status, _ = requestJSON(t, engine, http.MethodGet, "/api/auth/me", loggedIn.Token, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	engine, _ := setupTestEngine(t)
	status, body := requestJSON(t, engine, http.MethodGet, "/metrics", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for metrics, got %d", status)
	}
	if !strings.Contains(string(body), "focusify_timers_loaded") {
		t.Fatal("expected focusify metrics to be exported")
	}
}

func TestCORSPreflight(t *testing.T) {
	engine, _ := setupTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func setupTestEngine(t *testing.T) (http.Handler, *clock.Fake) {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if err := db.RunMigrations(database, testutil.MigrationsDir(t)); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	fake := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local))
	userRepo := repository.NewUserRepository(database)
	pomodoroRepo := repository.NewPomodoroRepository(database)
	authService := service.NewAuthService(
		userRepo,
		pomodoroRepo,
		"test-secret",
		24*time.Hour,
		service.WithAuthClock(fake.Now),
		service.WithAuthLogger(zerolog.Nop()),
	)
	pomodoroService := service.NewPomodoroService(
		pomodoroRepo,
		store.NewSnapshotStore(store.NewSQLite(database)),
		service.WithTimerOptions(pomodoro.WithClock(fake)),
		service.WithNow(fake.Now),
		service.WithLogger(zerolog.Nop()),
	)
	t.Cleanup(func() {
		_ = pomodoroService.Close(context.Background())
	})

	authHandler := handler.NewAuthHandler(authService)
	pomodoroHandler := handler.NewPomodoroHandler(pomodoroService)

	return router.New(authService, authHandler, pomodoroHandler, router.Options{
		CORSOrigins:    []string{"http://localhost:5173"},
		MetricsEnabled: true,
		Logger:         zerolog.Nop(),
	}), fake
}

func registerUser(t *testing.T, server http.Handler, email, password string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func getState(t *testing.T, server http.Handler, token string) stateEnvelope {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/pomodoro/state", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get state failed with status %d: %s", status, string(body))
	}
	return decodeState(t, body)
}

func decodeState(t *testing.T, body []byte) stateEnvelope {
	t.Helper()
	var stateResp stateEnvelope
	if err := json.Unmarshal(body, &stateResp); err != nil {
		t.Fatalf("unmarshal state response: %v", err)
	}
	return stateResp
}

func decodeError(t *testing.T, body []byte) apiErrorEnvelope {
	t.Helper()
	var errResp apiErrorEnvelope
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	return errResp
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
