package app

import (
	"context"
	"strings"

	"repeat/internal/config"
	logx "repeat/pkg/logx"
)

// watchConfig follows the config file for the lifetime of the run. Only the
// logging section is applied live; the rest is fixed once the loop starts.
func (a *App) watchConfig() {
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	ch := config.SummarizeChange(oldCfg, newCfg)
	if ch.Empty() {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Attrs...)
	a.log.Debug("config change summary", fields...)

	if len(ch.Frozen) > 0 {
		a.log.Warn("config sections changed; restart required for them to take effect",
			logx.Strs("sections", ch.Frozen))
	}
	if ch.LoggingChanged() {
		a.logs.Apply(loggingConfig(newCfg.Logging, a.opts.LogLevel))
		a.log.Info("logging config applied")
	}
}
