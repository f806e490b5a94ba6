package app

import (
	"errors"
	"fmt"
	"time"

	"repeat/internal/config"
	"repeat/internal/interval"
	"repeat/internal/scheduler"
	logx "repeat/pkg/logx"
)

var ErrNoInterval = errors.New("no time interval was given")

// Options are the values taken from the command line. Nil pointers and empty
// strings mean "not given"; the config file or the defaults fill them in.
type Options struct {
	ConfigPath string

	Interval     *interval.Spec
	Repeats      *uint64
	PollInterval *time.Duration
	LogLevel     string

	HistoryDriver string
	HistoryPath   string

	Program string
	Args    []string
}

// settings is the merged view: flags, then the config file, then defaults.
type settings struct {
	interval interval.Spec
	policy   scheduler.Policy
	poll     time.Duration
	logging  logx.Config
	history  *config.HistoryConfig
}

func resolveSettings(opts Options, cfg *config.Config) (settings, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var s settings

	switch {
	case opts.Interval != nil:
		s.interval = *opts.Interval
	case cfg.Interval != nil:
		spec, err := intervalFromConfig(cfg.Interval)
		if err != nil {
			return settings{}, err
		}
		s.interval = spec
	default:
		return settings{}, ErrNoInterval
	}
	if err := s.interval.Validate(); err != nil {
		return settings{}, err
	}

	s.policy = scheduler.Unlimited()
	if opts.Repeats != nil {
		s.policy = scheduler.Fixed(*opts.Repeats)
	} else if cfg.Repeats != nil {
		s.policy = scheduler.Fixed(*cfg.Repeats)
	}

	if opts.PollInterval != nil {
		if *opts.PollInterval < 0 {
			return settings{}, errors.New("poll interval must be >= 0")
		}
		s.poll = *opts.PollInterval
	} else {
		d, err := config.ParseDurationOrDefault("poll_interval", cfg.PollInterval, scheduler.DefaultPollInterval)
		if err != nil {
			return settings{}, err
		}
		s.poll = d
	}

	s.logging = loggingConfig(cfg.Logging, opts.LogLevel)

	s.history = cfg.History
	if opts.HistoryDriver != "" || opts.HistoryPath != "" {
		h := config.HistoryConfig{}
		if cfg.History != nil {
			h = *cfg.History
		}
		if opts.HistoryDriver != "" {
			h.Driver = opts.HistoryDriver
		}
		if opts.HistoryPath != "" {
			h.Path = opts.HistoryPath
			if h.Driver == "" {
				h.Driver = "file"
			}
		}
		s.history = &h
	}
	return s, nil
}

func intervalFromConfig(ic *config.IntervalConfig) (interval.Spec, error) {
	unit, err := interval.ParseUnit(ic.Unit)
	if err != nil {
		return interval.Spec{}, fmt.Errorf("interval.unit: %w", err)
	}
	spec := interval.Spec{Unit: unit, Magnitude: ic.Value}
	if err := spec.Validate(); err != nil {
		return interval.Spec{}, fmt.Errorf("interval.value: %w", err)
	}
	return spec, nil
}

// loggingConfig maps the logging section; a --log-level flag wins over the file.
func loggingConfig(lc config.LoggingConfig, levelOverride string) logx.Config {
	out := logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled: lc.File.Enabled,
			Path:    lc.File.Path,
		},
	}
	if levelOverride != "" {
		out.Level = levelOverride
	}
	return out
}

// validateConfig rejects a reloaded file that would not have been accepted at
// startup, even for sections that only apply on restart.
func validateConfig(cfg *config.Config) error {
	if cfg.Interval != nil {
		if _, err := intervalFromConfig(cfg.Interval); err != nil {
			return err
		}
	}
	if _, err := config.ParseDurationField("poll_interval", cfg.PollInterval); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg.History); err != nil {
		return err
	}
	return nil
}
