package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"focusify/internal/countdown"
	"focusify/internal/model"
)

const (
	AppName        = "focusify"
	cliConfigFile  = "config.yaml"
	cliStateSubdir = "state"
)

// CLI holds the terminal client's preferences.
type CLI struct {
	SessionsPerCycle int
	AutoStartNext    bool
	AutoStartDelay   time.Duration
	TickInterval     time.Duration
	Sound            bool
	Notifications    bool
	StateDir         string
}

type yamlCLI struct {
	SessionsPerCycle      int    `yaml:"sessions_per_cycle"`
	AutoStartNext         bool   `yaml:"auto_start_next"`
	AutoStartDelaySeconds int    `yaml:"auto_start_delay_seconds"`
	TickIntervalMS        int    `yaml:"tick_interval_ms"`
	Sound                 *bool  `yaml:"sound"`
	Notifications         *bool  `yaml:"notifications"`
	StateDir              string `yaml:"state_dir,omitempty"`
}

func DefaultCLI() CLI {
	return CLI{
		SessionsPerCycle: model.DefaultSessionsPerCycle,
		AutoStartDelay:   countdown.DefaultAutoStartDelay,
		TickInterval:     countdown.DefaultTickInterval,
		Sound:            true,
		Notifications:    true,
	}
}

// DefaultCLIPath is config.yaml in the user's config directory.
func DefaultCLIPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, AppName, cliConfigFile), nil
}

// LoadCLI reads the CLI config at path. A missing file yields the defaults.
// StateDir defaults to a directory next to the config file.
func LoadCLI(path string) (CLI, error) {
	cfg := DefaultCLI()
	cfg.StateDir = filepath.Join(filepath.Dir(path), cliStateSubdir)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var fileData yamlCLI
	if err := yaml.Unmarshal(raw, &fileData); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}
	applyYAML(&cfg, fileData)
	return cfg, nil
}

// SaveCLI writes cfg to path, creating the directory if needed.
func SaveCLI(path string, cfg CLI) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	sound, notifications := cfg.Sound, cfg.Notifications
	fileData := yamlCLI{
		SessionsPerCycle:      cfg.SessionsPerCycle,
		AutoStartNext:         cfg.AutoStartNext,
		AutoStartDelaySeconds: int(cfg.AutoStartDelay / time.Second),
		TickIntervalMS:        int(cfg.TickInterval / time.Millisecond),
		Sound:                 &sound,
		Notifications:         &notifications,
	}
	if cfg.StateDir != filepath.Join(filepath.Dir(path), cliStateSubdir) {
		fileData.StateDir = cfg.StateDir
	}

	serialized, err := yaml.Marshal(fileData)
	if err != nil {
		return fmt.Errorf("marshal config yaml: %w", err)
	}
	if err := renameio.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Settings returns the pomodoro settings described by the CLI config.
func (c CLI) Settings() model.PomodoroSettings {
	settings := model.DefaultPomodoroSettings()
	settings.SessionsPerCycle = c.SessionsPerCycle
	settings.AutoStartNext = c.AutoStartNext
	return settings.Normalize()
}

func (c CLI) Engine() countdown.Config {
	return countdown.Config{TickInterval: c.TickInterval, AutoStartDelay: c.AutoStartDelay}
}

func applyYAML(cfg *CLI, fileData yamlCLI) {
	if fileData.SessionsPerCycle > 0 {
		cfg.SessionsPerCycle = fileData.SessionsPerCycle
	}
	if fileData.AutoStartDelaySeconds > 0 {
		cfg.AutoStartDelay = time.Duration(fileData.AutoStartDelaySeconds) * time.Second
	}
	if fileData.TickIntervalMS > 0 {
		cfg.TickInterval = time.Duration(fileData.TickIntervalMS) * time.Millisecond
	}
	if fileData.Sound != nil {
		cfg.Sound = *fileData.Sound
	}
	if fileData.Notifications != nil {
		cfg.Notifications = *fileData.Notifications
	}
	if fileData.StateDir != "" {
		cfg.StateDir = fileData.StateDir
	}
	cfg.AutoStartNext = fileData.AutoStartNext
}
