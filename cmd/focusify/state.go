package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"focusify/internal/config"
	"focusify/internal/model"
	"focusify/internal/pomodoro"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved timer and cycle state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			timer := a.openTimer(cmd.Context())
			defer timer.Close()

			printStatus(a.out, timer.View(), timer.NextSession())
			return nil
		},
	}
}

func newResetCycleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-cycle",
		Short: "Restart the current cycle, keeping today's total",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			view, err := a.mutate(cmd.Context(), (*pomodoro.Timer).ResetCycle)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "Cycle reset. %d sessions today.\n", view.TotalSessions)
			return err
		},
	}
}

func newNewDayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "new-day",
		Short: "Reset all cycle counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if _, err := a.mutate(cmd.Context(), (*pomodoro.Timer).NewDay); err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, "Counters reset for a new day.")
			return err
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all saved timer state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := a.snapshots.Clear(cmd.Context(), owner); err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, "Saved state cleared.")
			return err
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			encoder := yaml.NewEncoder(a.out)
			defer encoder.Close()
			return encoder.Encode(map[string]interface{}{
				"path":             a.configPath,
				"settings":         a.cfg.Settings(),
				"auto_start_delay": a.cfg.AutoStartDelay.String(),
				"tick_interval":    a.cfg.TickInterval.String(),
				"sound":            a.cfg.Sound,
				"notifications":    a.cfg.Notifications,
				"state_dir":        a.cfg.StateDir,
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file with the current values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := config.SaveCLI(a.configPath, a.cfg); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "Wrote %s\n", a.configPath)
			return err
		},
	})
	return cmd
}

func printStatus(out io.Writer, view model.View, next model.NextSession) {
	state := "paused"
	if view.IsRunning {
		state = "running"
	}
	_, _ = fmt.Fprintf(out, "%s  %s (%s)\n", view.Mode.Label(), model.FormatClock(view.TimeLeft), state)
	_, _ = fmt.Fprintf(out, "Cycle %d: %d/%d sessions (%.0f%%)\n",
		view.CurrentCycle, view.SessionsCompleted, view.SessionsPerCycle, view.CycleProgress)
	_, _ = fmt.Fprintf(out, "Sessions today: %d\n", view.TotalSessions)
	_, _ = fmt.Fprintf(out, "Auto-start next: %t\n", view.AutoStartNext)
	_, _ = fmt.Fprintf(out, "After this: %s. %s\n", next.Mode.Label(), next.Message)
}
