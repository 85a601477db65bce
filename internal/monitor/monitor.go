package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"dipwatch/internal/heightlog"
	"dipwatch/internal/leaderboard"
	"dipwatch/internal/metrics"
	"dipwatch/internal/notifier"
	"dipwatch/internal/publish"
	logx "dipwatch/pkg/logx"
)

// ErrFetch wraps every failure to read the player's live height.
var ErrFetch = errors.New("monitor: fetch failed")

type Fetcher interface {
	Fetch(ctx context.Context, player string) (leaderboard.Reading, error)
}

type Notifier interface {
	Notify(ctx context.Context, m notifier.Message) error
}

type ChartWriter interface {
	WriteFile(path string, l *heightlog.HeightLog) error
}

type Publisher interface {
	Publish(ctx context.Context, a publish.Artifacts) error
}

type Config struct {
	Player       string
	FloorTarget  float64
	HeightsPath  string
	ChartPath    string
	FetchTimeout time.Duration
}

// Deps are the tick collaborators. Notifier, Chart, Publisher and Metrics
// are optional.
type Deps struct {
	Fetcher   Fetcher
	Recorder  *heightlog.Recorder
	Notifier  Notifier
	Chart     ChartWriter
	Publisher Publisher
	Metrics   *metrics.Metrics
	// Report receives the per-tick console report when set.
	Report io.Writer
}

// Result describes one tick.
type Result struct {
	At       time.Time
	Sample   heightlog.Sample
	Reading  *leaderboard.Reading // nil when the fetch failed
	Summary  heightlog.Summary
	Notified bool

	FetchErr   error
	NotifyErr  error
	RenderErr  error
	PublishErr error
}

// Monitor runs ticks: fetch, record, detect the target crossing, notify,
// render and publish. Only a persistence failure fails a tick.
type Monitor struct {
	cfg  Config
	deps Deps
	log  logx.Logger
	now  func() time.Time

	mu      sync.Mutex
	last    Result
	hasLast bool
}

func New(cfg Config, deps Deps, log logx.Logger) (*Monitor, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("monitor: fetcher required")
	}
	if deps.Recorder == nil {
		return nil, errors.New("monitor: recorder required")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{cfg: cfg, deps: deps, log: log.With(logx.String("comp", "monitor")), now: time.Now}, nil
}

// WithClock overrides the tick clock, for tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	if now != nil {
		m.now = now
	}
	return m
}

// Last returns the most recent tick result.
func (m *Monitor) Last() (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.hasLast
}

// Tick performs one monitoring cycle and always records exactly one sample
// unless persisting it fails.
func (m *Monitor) Tick(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{At: m.now().UTC()}

	reading, err := m.fetch(ctx)
	res.Sample = heightlog.SampleFromFetch(reading.Height, reading.IsPlaying, err, res.At)
	if err != nil {
		res.FetchErr = err
		m.log.Warn("fetch failed; recording null sample", logx.Err(err))
	} else {
		res.Reading = &reading
	}

	doc, err := m.deps.Recorder.Record(ctx, res.Sample)
	if err != nil {
		m.observeTick("persist_error", start)
		m.log.Error("tick failed", logx.Err(err))
		return res, err
	}
	res.Summary = heightlog.Summarize(doc)

	if heightlog.CrossedOnLast(doc) {
		res.Notified, res.NotifyErr = m.notifyCrossing(ctx, doc, res)
	}

	chartPath := ""
	if m.deps.Chart != nil && m.cfg.ChartPath != "" {
		if err := m.deps.Chart.WriteFile(m.cfg.ChartPath, doc); err != nil {
			res.RenderErr = err
			m.log.Error("chart render failed; previous chart kept", logx.Err(err))
			if m.deps.Metrics != nil {
				m.deps.Metrics.IncRenderFailures()
			}
		} else {
			chartPath = m.cfg.ChartPath
		}
	}

	if m.deps.Publisher != nil {
		res.PublishErr = m.deps.Publisher.Publish(ctx, publish.Artifacts{
			HeightsPath: m.cfg.HeightsPath,
			ChartPath:   chartPath,
			At:          res.At,
			Message:     commitMessage(res),
		})
		if m.deps.Metrics != nil {
			m.deps.Metrics.ObservePublish(res.PublishErr)
		}
	}

	outcome := "ok"
	switch {
	case errors.Is(res.FetchErr, leaderboard.ErrPlayerNotFound):
		outcome = "not_found"
	case res.FetchErr != nil:
		outcome = "fetch_error"
	}
	m.observeTick(outcome, start)
	if m.deps.Metrics != nil {
		m.deps.Metrics.SetSample(res.At, res.Sample.LiveHeight, res.Sample.Active())
		m.deps.Metrics.SetDocument(res.Summary.Checks, res.Summary.Peak)
	}
	if m.deps.Report != nil {
		Report(m.deps.Report, res)
	}
	m.log.Info("tick recorded",
		logx.Height("live_height", res.Sample.LiveHeight),
		logx.Bool("playing", res.Sample.IsPlaying),
		logx.Int("points", res.Summary.Checks),
		logx.Bool("notified", res.Notified),
		logx.Duration("took", time.Since(start)),
	)

	m.mu.Lock()
	m.last, m.hasLast = res, true
	m.mu.Unlock()
	return res, nil
}

func (m *Monitor) fetch(ctx context.Context) (leaderboard.Reading, error) {
	fctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()
	r, err := m.deps.Fetcher.Fetch(fctx, m.cfg.Player)
	if err != nil {
		return leaderboard.Reading{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if r.PB != nil {
		m.log.Debug("personal best", logx.Height("pb", r.PB))
	}
	return r, nil
}

func (m *Monitor) notifyCrossing(ctx context.Context, doc *heightlog.HeightLog, res Result) (bool, error) {
	if m.deps.Notifier == nil {
		m.log.Info("target reached; no notifier configured", logx.Float64("floor_target", doc.FloorTarget))
		return false, nil
	}
	err := m.deps.Notifier.Notify(ctx, CrossingMessage(doc, res))
	if err != nil {
		// The crossing stays in history, so a failed delivery is not retried.
		m.log.Error("target notification failed", logx.Err(err))
		return false, err
	}
	return true, nil
}

func (m *Monitor) observeTick(result string, start time.Time) {
	if m.deps.Metrics != nil {
		m.deps.Metrics.ObserveTick(result, time.Since(start))
	}
}

// CrossingMessage builds the one-shot target notification.
func CrossingMessage(doc *heightlog.HeightLog, res Result) notifier.Message {
	h := 0.0
	if res.Sample.LiveHeight != nil {
		h = *res.Sample.LiveHeight
	}
	text := fmt.Sprintf("Live height: %s\nTarget: %.0fm\nTime: %s",
		heightlog.FloorLabel(h), doc.FloorTarget, res.At.Format("2006-01-02 15:04:05 UTC"))
	if res.Reading != nil && res.Reading.PB != nil {
		text += fmt.Sprintf("\nPersonal best: %.1fm", *res.Reading.PB)
	}
	return notifier.Message{
		Title:    fmt.Sprintf("%s reached %.0fm on Deep Dip 2!", doc.Player, doc.FloorTarget),
		Text:     text,
		Priority: 7,
	}
}

func commitMessage(res Result) string {
	if res.Sample.LiveHeight != nil {
		return fmt.Sprintf("Update height data: %.1fm at %s", *res.Sample.LiveHeight, res.At.Format("2006-01-02 15:04 UTC"))
	}
	return "Update height data: not playing at " + res.At.Format("2006-01-02 15:04 UTC")
}
