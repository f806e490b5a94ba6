// Package cli is the repeat command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"repeat/internal/app"
	"repeat/internal/scheduler"
)

// Version is stamped at build time with -ldflags "-X repeat/internal/cli.Version=...".
var Version = "dev"

type runFunc func(ctx context.Context, opts app.Options) error

// NewRootCmd creates the root cobra command for the repeat CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(runRepeat)
}

func newRootCmd(run runFunc) *cobra.Command {
	var (
		iv            intervalTarget
		repeats       uint64
		poll          = scheduler.DefaultPollInterval
		configPath    string
		logLevel      string
		historyDriver string
		historyPath   string
	)

	root := &cobra.Command{
		Use:   "repeat [-[smhd] N] [-n N] COMMAND [ARG...]",
		Short: "Run a command repeatedly at a fixed interval",
		Long: "repeat runs COMMAND, waits for it to finish, and runs it again once the\n" +
			"interval has passed since the previous run started. Without -n it runs forever.",
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return scheduler.ErrNoCommand
			}
			opts := app.Options{
				ConfigPath:    configPath,
				Interval:      iv.spec,
				LogLevel:      logLevel,
				HistoryDriver: historyDriver,
				HistoryPath:   historyPath,
				Program:       args[0],
				Args:          args[1:],
			}
			fs := cmd.Flags()
			if fs.Changed("repeats") {
				opts.Repeats = &repeats
			}
			if fs.Changed("poll") {
				opts.PollInterval = &poll
			}
			return run(cmd.Context(), opts)
		},
	}

	fs := root.Flags()
	// Everything after the program name belongs to the program.
	fs.SetInterspersed(false)
	addIntervalFlags(fs, &iv)
	fs.Uint64VarP(&repeats, "repeats", "n", 0, "execute the command a total of N times")
	fs.StringVar(&configPath, "config", "", "path to a YAML or JSON config file")
	fs.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	fs.DurationVar(&poll, "poll", scheduler.DefaultPollInterval, "how often the clock is checked while waiting (0 spins)")
	fs.StringVar(&historyDriver, "history-driver", "", "firing history driver (file, sqlite)")
	fs.StringVar(&historyPath, "history", "", "write a firing history to this path")

	// -h is --hours; help keeps only its long form.
	fs.Bool("help", false, "print this help text and exit")

	return root
}

func runRepeat(ctx context.Context, opts app.Options) error {
	a, err := app.New(opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(ctx)
}
