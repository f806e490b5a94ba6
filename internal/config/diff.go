package config

import (
	"reflect"
	"strings"

	logx "repeat/pkg/logx"
)

// Change summarizes a config reload.
type Change struct {
	// Sections lists every top-level section that differs.
	Sections []string
	// Frozen lists the changed sections that only apply at startup.
	Frozen []string
	// Attrs are safe structured fields describing the new values.
	Attrs []logx.Field
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// LoggingChanged reports whether the reload touched the logging section.
func (c Change) LoggingChanged() bool {
	for _, s := range c.Sections {
		if s == "logging" {
			return true
		}
	}
	return false
}

// SummarizeChange compares two configs section by section.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var ch Change

	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		ch.Sections = append(ch.Sections, "logging")
		ch.Attrs = append(ch.Attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}

	frozen := func(name string, changed bool) {
		if changed {
			ch.Sections = append(ch.Sections, name)
			ch.Frozen = append(ch.Frozen, name)
		}
	}
	frozen("interval", !reflect.DeepEqual(oldCfg.Interval, newCfg.Interval))
	frozen("repeats", !reflect.DeepEqual(oldCfg.Repeats, newCfg.Repeats))
	frozen("poll_interval", strings.TrimSpace(oldCfg.PollInterval) != strings.TrimSpace(newCfg.PollInterval))
	frozen("history", !reflect.DeepEqual(oldCfg.History, newCfg.History))

	return ch
}
