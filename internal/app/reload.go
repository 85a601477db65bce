package app

import (
	"context"
	"strings"

	"dipwatch/internal/config"
	logx "dipwatch/pkg/logx"
)

// startReloader applies hot-reloadable sections from the config manager:
// logging, schedule and notifier. Other changes are logged as needing a
// restart.
func (a *App) startReloader() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(ctx context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-ctx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.NeedsRestart(oldCfg, newCfg); len(restart) > 0 {
		a.log.Warn("config changes require a restart to take effect", logx.String("sections", strings.Join(restart, ",")))
	}

	if err := a.logs.Apply(newCfg.LogConfig()); err != nil {
		a.log.Warn("log file sink disabled", logx.Err(err))
	}

	a.sched.Apply(mapSchedulerConfig(newCfg))
	if oldCfg.Schedule.Spec != newCfg.Schedule.Spec || oldCfg.Schedule.TickTimeout != newCfg.Schedule.TickTimeout {
		if err := a.sched.AddSchedule(tickSchedule, newCfg.Schedule.Spec, newCfg.TickTimeout(), a.tickJob); err != nil {
			a.log.Warn("invalid schedule; keeping previous", logx.Err(err))
		}
	}

	if ncfg, channels, err := mapNotifier(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg, channels...)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
