package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"focusify/internal/model"
	"focusify/internal/notify"
	"focusify/internal/pomodoro"
)

const (
	fastTickInterval   = 10 * time.Millisecond
	fastAutoStartDelay = 300 * time.Millisecond
)

type runOptions struct {
	mode      string
	autoStart bool
	fast      bool
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var ro runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the timer until the session ends or Ctrl-C",
		Long: "Run the timer in the terminal. With auto-start enabled the timer keeps " +
			"moving through focus sessions and breaks until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if ro.fast {
				a.cfg.TickInterval = fastTickInterval
				a.cfg.AutoStartDelay = fastAutoStartDelay
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			timer := a.openTimer(ctx)
			defer timer.Close()

			if cmd.Flags().Changed("auto-start") {
				timer.SetAutoStartNext(ro.autoStart)
			}
			if ro.mode != "" {
				mode, ok := model.ParseMode(ro.mode)
				if !ok {
					return fmt.Errorf("unknown mode %q (want focus, short-break or long-break)", ro.mode)
				}
				timer.SetMode(mode)
			}

			events := timer.Subscribe(4)
			timer.Start()

			refresh := time.NewTicker(a.cfg.TickInterval)
			defer refresh.Stop()
			return a.runTimer(ctx, timer, events, a.notifier(), refresh.C)
		},
	}
	cmd.Flags().StringVar(&ro.mode, "mode", "", "switch to this mode before starting")
	cmd.Flags().BoolVar(&ro.autoStart, "auto-start", false, "start the next session automatically")
	cmd.Flags().BoolVar(&ro.fast, "fast", false, "run with a 10ms tick for demos")
	return cmd
}

func (a *app) notifier() notify.Notifier {
	notifiers := notify.Multi{notify.NewLog(a.logger)}
	if a.cfg.Notifications {
		notifiers = append(notifiers, notify.NewWriter(a.out, a.cfg.Sound))
	}
	return notifiers
}

// runTimer renders the countdown on every refresh and handles completions.
// It returns after a completion when auto-start is off, or when ctx ends,
// in which case the timer is paused first. The state is saved either way.
func (a *app) runTimer(
	ctx context.Context,
	timer *pomodoro.Timer,
	events <-chan model.SessionCompletionEvent,
	notifier notify.Notifier,
	refresh <-chan time.Time,
) error {
	a.render(timer.View())
	if err := a.save(ctx, timer); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			timer.Pause()
			_, _ = fmt.Fprintln(a.out)
			return a.save(context.Background(), timer)

		case event, ok := <-events:
			if !ok {
				return nil
			}
			_, _ = fmt.Fprintln(a.out)
			if err := notifier.Notify(ctx, notify.MessageFor(event)); err != nil {
				a.logger.Warn().Err(err).Msg("notification failed")
			}
			if err := a.save(ctx, timer); err != nil {
				return err
			}

			view := timer.View()
			if !view.AutoStartNext {
				next := timer.NextSession()
				_, _ = fmt.Fprintf(a.out, "Next: %s (%s). %s\n", view.Mode.Label(), model.FormatClock(view.TimeLeft), next.Message)
				return nil
			}
			_, _ = fmt.Fprintf(a.out, "%s starts in %s\n", view.Mode.Label(), a.cfg.AutoStartDelay)

		case <-refresh:
			a.render(timer.View())
		}
	}
}

func (a *app) render(view model.View) {
	state := ""
	if !view.IsRunning {
		state = " (paused)"
	}
	_, _ = fmt.Fprintf(a.out, "\r%-11s %s  cycle %d  %d/%d%s   ",
		view.Mode.Label(),
		model.FormatClock(view.TimeLeft),
		view.CurrentCycle,
		view.SessionsCompleted,
		view.SessionsPerCycle,
		state,
	)
}
