package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/asitkr/event-loop-visualizer/internal/config"
	"github.com/asitkr/event-loop-visualizer/internal/engine"
	"github.com/asitkr/event-loop-visualizer/internal/tui"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	EngineFlags
	AutoRun bool
	LogFile string
	Refresh time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [program-file]",
		Short: "Step through a program in an interactive terminal view",
		Long: `Open a full-screen view of the engine: the program, the call stack, the
pending timers, both queues and the log, redrawn as the run advances.

Keys: r/enter run, p/space pause, x reset, +/- speed, q quit.

The terminal is taken over while the view is open, so engine logs go to
--log-file (discarded by default).

Example:
  loopviz watch ./examples/order.js
  loopviz watch --auto --speed 2 --policy every-turn ./examples/order.js`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args, cmd)
		},
	}

	opts.EngineFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.AutoRun, "auto", false, "start running immediately")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "write engine logs to this file")
	cmd.Flags().DurationVar(&opts.Refresh, "refresh", tui.DefaultRefreshInterval, "redraw interval")

	return cmd
}

func runWatch(opts *WatchOptions, args []string, cmd *cobra.Command) error {
	program, err := loadProgramForCommand(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := opts.resolve(cmd)
	if err != nil {
		return err
	}

	logOut := io.Discard
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open log file", err)
		}
		defer f.Close()
		logOut = f
	}

	eng, model := newWatchModel(opts, cfg, program, newLogger(opts.RootOptions, logOut))
	defer eng.Reset()

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil {
		return WrapExitError(ExitFailure, "watch view failed", fmt.Errorf("tui: %w", err))
	}
	return nil
}

// newWatchModel builds the engine and the view model that drives it.
func newWatchModel(opts *WatchOptions, cfg config.Config, program string, logger *slog.Logger) (*engine.Engine, *tui.Model) {
	eng := engine.New(append(cfg.Options(), engine.WithLogger(logger))...)

	tuiOpts := []tui.Option{
		tui.WithSpeed(cfg.Speed),
		tui.WithRefreshInterval(opts.Refresh),
	}
	if opts.AutoRun {
		tuiOpts = append(tuiOpts, tui.WithAutoRun())
	}
	return eng, tui.New(eng, program, tuiOpts...)
}
