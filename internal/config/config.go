package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"focusify/internal/countdown"
	"focusify/internal/model"
)

const (
	StateBackendSQLite = "sqlite"
	StateBackendRedis  = "redis"
)

type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string // empty means the embedded migrations

	LogLevel         string
	TickInterval     time.Duration
	AutoStartDelay   time.Duration
	SessionsPerCycle int
	StateBackend     string
	RedisAddr        string
	RedisPrefix      string
	MetricsEnabled   bool
}

func Load() Config {
	return Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./data/focusify.db"),
		JWTSecret:     getEnv("JWT_SECRET", "change-this-secret"),
		TokenTTL:      time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour,
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		MigrationsDir: os.Getenv("MIGRATIONS_DIR"),

		LogLevel:         getEnv("LOG_LEVEL", "info"),
		TickInterval:     time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		AutoStartDelay:   time.Duration(getEnvInt("AUTO_START_DELAY_MS", 3000)) * time.Millisecond,
		SessionsPerCycle: getEnvInt("SESSIONS_PER_CYCLE", model.DefaultSessionsPerCycle),
		StateBackend:     getEnvChoice("STATE_BACKEND", StateBackendSQLite, StateBackendSQLite, StateBackendRedis),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPrefix:      getEnv("REDIS_PREFIX", "focusify:"),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
	}
}

// Engine returns the countdown timing derived from the config.
func (c Config) Engine() countdown.Config {
	return countdown.Config{TickInterval: c.TickInterval, AutoStartDelay: c.AutoStartDelay}
}

// Settings returns the pomodoro settings new timers are created with.
func (c Config) Settings() model.PomodoroSettings {
	settings := model.DefaultPomodoroSettings()
	settings.SessionsPerCycle = c.SessionsPerCycle
	return settings.Normalize()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvChoice(key, fallback string, choices ...string) string {
	value := strings.ToLower(os.Getenv(key))
	for _, choice := range choices {
		if value == choice {
			return choice
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
