// Package notify delivers session-completion notices to the user.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"focusify/internal/model"
)

// Sound cues for completed sessions.
const (
	SoundBell  = "bell"
	SoundChime = "chime"
)

type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound"`
	Mode  string `json:"mode"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// MessageFor builds the notice for a completion event.
func MessageFor(event model.SessionCompletionEvent) Message {
	msg := Message{Mode: string(event.CompletedMode)}
	switch event.CompletedMode {
	case model.ModeFocus:
		length := "short"
		if event.NextMode == model.ModeLongBreak {
			length = "long"
		}
		msg.Title = "Focus Session Complete!"
		msg.Body = fmt.Sprintf("Great work! Time for a %s break.", length)
		msg.Sound = SoundBell
	case model.ModeShortBreak:
		msg.Title = "Break Over!"
		msg.Body = "Ready to get back to focused work?"
		msg.Sound = SoundChime
	case model.ModeLongBreak:
		msg.Title = "Long Break Complete!"
		msg.Body = "Refreshed and ready for a new cycle!"
		msg.Sound = SoundChime
	default:
		msg.Title = "Session Complete!"
		msg.Body = event.Message
		msg.Sound = SoundChime
	}
	return msg
}

// Log records notices as structured log entries.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, msg Message) error {
	l.logger.Info().
		Str("mode", msg.Mode).
		Str("sound", msg.Sound).
		Str("body", msg.Body).
		Msg(msg.Title)
	return nil
}

// Writer prints notices to a terminal. With Bell set, the sound cue is the
// terminal bell.
type Writer struct {
	mu   sync.Mutex
	out  io.Writer
	Bell bool
}

func NewWriter(out io.Writer, bell bool) *Writer {
	return &Writer{out: out, Bell: bell}
}

func (w *Writer) Notify(_ context.Context, msg Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prefix := ""
	if w.Bell && msg.Sound != "" {
		prefix = "\a"
	}
	if _, err := fmt.Fprintf(w.out, "%s%s %s\n", prefix, msg.Title, msg.Body); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

// Multi fans a notice out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards notices.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }
