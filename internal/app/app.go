package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"dipwatch/internal/chart"
	"dipwatch/internal/config"
	"dipwatch/internal/heightlog"
	"dipwatch/internal/httpapi"
	"dipwatch/internal/leaderboard"
	"dipwatch/internal/metrics"
	"dipwatch/internal/monitor"
	"dipwatch/internal/notifier"
	"dipwatch/internal/publish"
	"dipwatch/internal/runtime/supervisor"
	"dipwatch/internal/task/scheduler"
	logx "dipwatch/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Options adjusts wiring for the CLI and tests.
type Options struct {
	// Report receives the per-tick console report; nil disables it.
	Report io.Writer
	// Fetcher replaces the leaderboard client.
	Fetcher monitor.Fetcher
}

// App wires the monitor into a long-running daemon or a one-shot command.
type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	metrics *metrics.Metrics
	rec     *heightlog.Recorder
	chart   *chart.Renderer
	notif   *notifier.Service
	pubs    *publish.Set
	mon     *monitor.Monitor
	sched   *scheduler.Service

	sup       *supervisor.Supervisor
	startedAt time.Time
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start or Tick.
func New(ctx context.Context, cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.NewConsole("info").With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.LogConfig())
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	m := metrics.New()

	rec := heightlog.NewRecorder(heightlog.NewFileStore(cfg.Data.HeightsPath), heightlog.RecorderConfig{
		Player:      cfg.Player,
		FloorTarget: cfg.FloorTarget,
		OnRecover:   func(string, error) { m.IncRecoveries() },
	}, log)

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = leaderboard.New(mapLeaderboardConfig(cfg), log)
	}
	renderer := chart.NewRenderer(mapChartOptions(cfg), log)

	ncfg, channels, err := mapNotifier(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	notif := notifier.New(ncfg, log, channels...)
	notif.OnResult(m.ObserveNotify)

	pubs, err := mapPublishers(ctx, cfg, log)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	deps := monitor.Deps{
		Fetcher:  fetcher,
		Recorder: rec,
		Notifier: notif,
		Chart:    renderer,
		Metrics:  m,
		Report:   opts.Report,
	}
	if pubs != nil {
		deps.Publisher = pubs
	}
	mon, err := monitor.New(monitor.Config{
		Player:       cfg.Player,
		FloorTarget:  cfg.FloorTarget,
		HeightsPath:  cfg.Data.HeightsPath,
		ChartPath:    cfg.Data.ChartPath,
		FetchTimeout: cfg.APITimeout(),
	}, deps, log)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	sched := scheduler.New(mapSchedulerConfig(cfg), log)
	sched.OnRun(func(name string, took time.Duration, skipped bool, err error) {
		if skipped {
			m.ObserveTick("skipped", took)
		}
	})

	log.Info("app configured",
		logx.String("player", cfg.Player),
		logx.Float64("floor_target", cfg.FloorTarget),
		logx.String("heights", cfg.Data.HeightsPath),
		logx.Any("channels", notif.Channels()),
		logx.Int("publishers", pubs.Len()),
	)
	return &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		metrics: m,
		rec:     rec,
		chart:   renderer,
		notif:   notif,
		pubs:    pubs,
		mon:     mon,
		sched:   sched,
	}, nil
}

func (a *App) Config() *config.Config        { return a.cfgm.Get() }
func (a *App) Logger() logx.Logger           { return a.log }
func (a *App) Recorder() *heightlog.Recorder { return a.rec }

// Tick runs one monitoring cycle.
func (a *App) Tick(ctx context.Context) (monitor.Result, error) {
	return a.mon.Tick(ctx)
}

// Render re-renders the chart from the stored document.
func (a *App) Render(ctx context.Context) (*heightlog.HeightLog, error) {
	doc, err := a.rec.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.chart.WriteFile(a.Config().Data.ChartPath, doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// Start runs the scheduler, the status server, the config watcher and the
// systemd watchdog until Stop or a fatal error.
func (a *App) Start(ctx context.Context) error {
	cfg := a.Config()
	a.startedAt = time.Now()
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if err := a.sched.AddSchedule(tickSchedule, cfg.Schedule.Spec, cfg.TickTimeout(), a.tickJob); err != nil {
		return fmt.Errorf("schedule.spec: %w", err)
	}
	a.sched.Start(a.sup.Context())

	if cfg.HTTP.Enabled {
		srv := httpapi.New(httpapi.Config{
			Addr:        cfg.HTTP.Addr,
			Pprof:       cfg.HTTP.Pprof,
			HeightsPath: cfg.Data.HeightsPath,
			ChartPath:   cfg.Data.ChartPath,
		}, a, a.metrics.Handler(), a.log)
		a.sup.GoRestart("http.serve", supervisor.RestartPolicy{MinBackoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second}, srv.Run)
	}

	a.startReloader()
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.startWatchdog()
	a.sup.Go0("tick.initial", func(ctx context.Context) {
		if err := a.sched.RunNow(ctx, tickSchedule); err != nil && !errors.Is(err, scheduler.ErrStopped) {
			a.log.Warn("initial tick failed", logx.Err(err))
		}
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started", logx.String("schedule", cfg.Schedule.Spec))
	return nil
}

// Done is closed when the daemon context ends (Stop or a fatal error).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Stop shuts down in dependency order, bounding each step by ctx.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	defer a.Close()
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	schedCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	a.sched.Stop(schedCtx)
	cancel()

	a.sup.Cancel()
	err := a.sup.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		a.log.Warn("shutdown deadline reached; goroutines still running")
	}
	a.log.Info("stopped")
	return err
}

// Close releases the log file sink. Stop calls it.
func (a *App) Close() error { return a.logs.Close() }

func (a *App) tickJob(ctx context.Context) error {
	_, err := a.mon.Tick(ctx)
	return err
}

// startWatchdog pings systemd at half the WatchdogSec interval when enabled.
func (a *App) startWatchdog() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		a.log.Warn("systemd watchdog config invalid", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(ctx context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
	a.log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
}

// Status implements httpapi.Provider.
func (a *App) Status(ctx context.Context) (httpapi.Status, error) {
	cfg := a.Config()
	doc, err := a.rec.Load(ctx)
	if err != nil {
		return httpapi.Status{}, err
	}
	st := httpapi.Status{
		Player:        cfg.Player,
		FloorTarget:   cfg.FloorTarget,
		StartedAt:     a.startedAt,
		Summary:       heightlog.Summarize(doc),
		Scheduler:     a.sched.Snapshot(),
		Notifications: a.notif.Snapshot(),
	}
	if a.sup != nil {
		st.Tasks = a.sup.Snapshot()
	}
	if res, ok := a.mon.Last(); ok {
		st.LastTick = tickStatus(res)
	}
	return st, nil
}

// Healthy implements httpapi.Provider.
func (a *App) Healthy() error { return a.Err() }

func tickStatus(res monitor.Result) *httpapi.TickStatus {
	errString := func(err error) string {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	return &httpapi.TickStatus{
		At:         res.At,
		LiveHeight: res.Sample.LiveHeight,
		IsPlaying:  res.Sample.IsPlaying,
		Notified:   res.Notified,
		FetchErr:   errString(res.FetchErr),
		NotifyErr:  errString(res.NotifyErr),
		RenderErr:  errString(res.RenderErr),
		PublishErr: errString(res.PublishErr),
	}
}
