package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"focusify/internal/config"
	xlog "focusify/internal/log"
	"focusify/internal/model"
	"focusify/internal/pomodoro"
	"focusify/internal/store"
)

// owner is the snapshot key used by the single-user terminal client.
const owner = "local"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	root := &cobra.Command{
		Use:           "focusify",
		Short:         "Pomodoro timer for the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: user config dir)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(newRunCmd(&opts))
	root.AddCommand(newStatusCmd(&opts))
	root.AddCommand(newResetCycleCmd(&opts))
	root.AddCommand(newNewDayCmd(&opts))
	root.AddCommand(newClearCmd(&opts))
	root.AddCommand(newConfigCmd(&opts))
	return root
}

type app struct {
	cfg        config.CLI
	configPath string
	snapshots  *store.SnapshotStore
	logger     zerolog.Logger
	out        io.Writer
	now        func() time.Time
}

func loadApp(opts *rootOptions, out io.Writer) (*app, error) {
	path := opts.configPath
	if path == "" {
		resolved, err := config.DefaultCLIPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	cfg, err := config.LoadCLI(path)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		configPath: path,
		snapshots:  store.NewSnapshotStore(store.NewFile(cfg.StateDir)),
		logger:     xlog.New(xlog.Config{Level: opts.logLevel, Output: os.Stderr, Pretty: true, Service: "focusify-cli"}),
		out:        out,
		now:        time.Now,
	}, nil
}

// openTimer restores the saved timer. Unreadable state starts fresh.
func (a *app) openTimer(ctx context.Context, opts ...pomodoro.Option) *pomodoro.Timer {
	opts = append([]pomodoro.Option{pomodoro.WithEngineConfig(a.cfg.Engine())}, opts...)
	timer := pomodoro.New(a.cfg.Settings(), opts...)

	snapshot, found, err := a.snapshots.Load(ctx, owner)
	if err != nil {
		a.logger.Warn().Err(err).Msg("saved state unreadable, starting fresh")
	}
	if !found {
		return timer
	}

	repairs, newDay := timer.RestoreOn(snapshot, a.now())
	for _, repair := range repairs {
		a.logger.Warn().Str("repair", repair).Msg("saved state corrected")
	}
	if newDay {
		a.logger.Info().Msg("new day, cycle counters reset")
	}
	return timer
}

func (a *app) save(ctx context.Context, timer *pomodoro.Timer) error {
	return a.snapshots.Save(ctx, owner, timer.Snapshot())
}

// mutate applies op to the saved timer and saves it again.
func (a *app) mutate(ctx context.Context, op func(t *pomodoro.Timer)) (model.View, error) {
	timer := a.openTimer(ctx)
	defer timer.Close()

	op(timer)
	if err := a.save(ctx, timer); err != nil {
		return model.View{}, err
	}
	return timer.View(), nil
}
