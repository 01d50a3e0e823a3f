// Package log configures the process-wide zerolog logger.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string    // "debug", "info", ...; falls back to LOG_LEVEL
	Output  io.Writer // defaults to os.Stdout
	Service string
	Pretty  bool // human-readable console output, used by the CLI
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the global logger. Only the first call has effect.
func Configure(cfg Config) {
	once.Do(func() {
		base = New(cfg)
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	})
}

// New builds a logger from cfg without touching the global one.
func New(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stdout
	}
	if cfg.Pretty {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}
	}

	service := cfg.Service
	if service == "" {
		service = "focusify"
	}

	return zerolog.New(writer).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

func parseLevel(raw string) zerolog.Level {
	if raw == "" {
		raw = os.Getenv("LOG_LEVEL")
	}
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// Base returns the configured logger, configuring defaults on first use.
func Base() zerolog.Logger {
	Configure(Config{})
	return base
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}
