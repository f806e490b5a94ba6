// Package app wires the repeat loop: config, logging, program resolution,
// the executor, the optional history store and service notifications.
package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"repeat/internal/config"
	"repeat/internal/executor"
	"repeat/internal/pathsearch"
	"repeat/internal/runtime/supervisor"
	"repeat/internal/scheduler"
	"repeat/internal/storage"
	logx "repeat/pkg/logx"
	"repeat/pkg/systemd"
)

// notifier is the service manager hook. *systemd.Notifier satisfies it.
type notifier interface {
	statusNotifier
	Ready() error
	Stopping() error
}

type App struct {
	opts  Options
	runID string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	set    settings
	cmd    executor.Command
	runner scheduler.Runner
	store  storage.Store
	notify notifier
}

// New loads configuration, resolves the program and opens the history store.
// Resolution errors (pathsearch.ErrPathVariableMissing and friends) are
// returned as is; the caller treats every error from New as fatal.
func New(opts Options) (*App, error) {
	if strings.TrimSpace(opts.Program) == "" {
		return nil, scheduler.ErrNoCommand
	}

	cfg := config.Default()
	var cfgm *config.ConfigManager
	if opts.ConfigPath != "" {
		cfgm = config.NewConfigManager(opts.ConfigPath)
		loaded, err := cfgm.Load()
		if err != nil {
			return nil, err
		}
		if err := validateConfig(loaded); err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set, err := resolveSettings(opts, cfg)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logSvc, root := logx.NewService(set.logging)
	log := root.With(logx.String("run_id", runID))

	a := &App{
		opts:   opts,
		runID:  runID,
		cfgm:   cfgm,
		log:    log.With(logx.String("comp", "app")),
		logs:   logSvc,
		set:    set,
		notify: systemd.NewNotifier(),
	}

	sp, err := pathsearch.LookupSearchPath()
	if err != nil {
		a.Close()
		return nil, err
	}
	path, err := pathsearch.Resolve(opts.Program, sp)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cmd = executor.NewCommand(path, opts.Args)
	a.runner = executor.New(executor.WithLogger(log.With(logx.String("comp", "executor"))))

	if sc, enabled, err := mapStorageConfig(set.history); err != nil {
		a.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = st
		a.log.Info("history enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	a.log.Debug("program resolved", logx.String("name", opts.Program), logx.String("path", path))
	return a, nil
}

func (a *App) RunID() string { return a.runID }

// Command is the resolved command the loop executes.
func (a *App) Command() executor.Command { return a.cmd }

// Run executes the repeat loop until the repeat count is reached or ctx is
// canceled. Background work (config watching) is stopped before it returns.
func (a *App) Run(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))
	if a.cfgm != nil {
		a.watchConfig()
	}

	opts := []scheduler.Option{
		scheduler.WithLogger(a.log.With(logx.String("comp", "scheduler"))),
		scheduler.WithObserver(&statusObserver{notify: a.notify, interval: a.set.interval, policy: a.set.policy, log: a.log}),
	}
	if a.store != nil {
		opts = append(opts, scheduler.WithObserver(&historyObserver{store: a.store, runID: a.runID, log: a.log}))
	}
	sched, err := scheduler.New(scheduler.Config{
		Command:      a.cmd,
		Interval:     a.set.interval,
		Policy:       a.set.policy,
		PollInterval: a.set.poll,
	}, a.runner, opts...)
	if err != nil {
		a.stopBackground()
		return err
	}

	if err := a.notify.Ready(); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	}
	a.log.Info("repeat started",
		logx.String("program", a.cmd.Path),
		logx.String("interval", a.set.interval.String()),
		logx.String("repeats", a.set.policy.String()),
	)

	began := time.Now()
	err = sched.Run(ctx)
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) && err != nil {
		a.log.Error("repeat loop failed", logx.Err(err))
	} else {
		a.log.Info("repeat finished", logx.String("started", humanize.Time(began)))
	}

	if err := a.notify.Stopping(); err != nil {
		a.log.Debug("sd_notify stopping failed", logx.Err(err))
	}
	a.stopBackground()
	return err
}

func (a *App) stopBackground() {
	if a.sup == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.sup.Stop(ctx); err != nil {
		a.log.Warn("background tasks did not stop cleanly", logx.Err(err))
	}
}

// Close releases the history store and log file. It is safe to call twice.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Close())
		a.logs = nil
	}
	return errors.Join(errs...)
}
