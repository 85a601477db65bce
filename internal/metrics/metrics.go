package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the monitor.
type Metrics struct {
	registry *prometheus.Registry

	ticksTotal      *prometheus.CounterVec // result=ok|fetch_error|not_found|persist_error|skipped
	tickDuration    prometheus.Histogram
	liveHeight      prometheus.Gauge
	playing         prometheus.Gauge
	peakHeight      prometheus.Gauge
	dataPoints      prometheus.Gauge
	lastTick        prometheus.Gauge
	notifyTotal     *prometheus.CounterVec // channel, result
	publishTotal    *prometheus.CounterVec // result
	renderFailures  prometheus.Counter
	recoveriesTotal prometheus.Counter
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dipwatch_ticks_total",
			Help: "Monitor ticks by outcome",
		}, []string{"result"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dipwatch_tick_duration_seconds",
			Help:    "Wall time of a full tick",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		liveHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dipwatch_live_height_meters",
			Help: "Most recent live height; NaN when not playing",
		}),
		playing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dipwatch_playing",
			Help: "1 when the last sample was an active session",
		}),
		peakHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dipwatch_peak_height_meters",
			Help: "Highest height in the document",
		}),
		dataPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dipwatch_data_points",
			Help: "Samples in the height document",
		}),
		lastTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dipwatch_last_tick_timestamp_seconds",
			Help: "Unix time of the last recorded sample",
		}),
		notifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dipwatch_notifications_total",
			Help: "Notification deliveries by channel and result",
		}, []string{"channel", "result"}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dipwatch_publish_total",
			Help: "Artifact publishes by result",
		}, []string{"result"}),
		renderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dipwatch_render_failures_total",
			Help: "Chart renders that failed",
		}),
		recoveriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dipwatch_document_recoveries_total",
			Help: "Corrupt height documents quarantined and reinitialized",
		}),
	}
	m.registry.MustRegister(
		m.ticksTotal,
		m.tickDuration,
		m.liveHeight,
		m.playing,
		m.peakHeight,
		m.dataPoints,
		m.lastTick,
		m.notifyTotal,
		m.publishTotal,
		m.renderFailures,
		m.recoveriesTotal,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveTick(result string, took time.Duration) {
	m.ticksTotal.WithLabelValues(result).Inc()
	if result != "skipped" {
		m.tickDuration.Observe(took.Seconds())
	}
}

// SetSample records the latest sample. height nil means no live session.
func (m *Metrics) SetSample(at time.Time, height *float64, playing bool) {
	if height != nil {
		m.liveHeight.Set(*height)
	} else {
		m.liveHeight.Set(math.NaN())
	}
	if playing {
		m.playing.Set(1)
	} else {
		m.playing.Set(0)
	}
	m.lastTick.Set(float64(at.Unix()))
}

func (m *Metrics) SetDocument(points int, peak *float64) {
	m.dataPoints.Set(float64(points))
	if peak != nil {
		m.peakHeight.Set(*peak)
	}
}

func (m *Metrics) ObserveNotify(channel string, err error) {
	m.notifyTotal.WithLabelValues(channel, result(err)).Inc()
}

func (m *Metrics) ObservePublish(err error) {
	m.publishTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) IncRenderFailures() { m.renderFailures.Inc() }

func (m *Metrics) IncRecoveries() { m.recoveriesTotal.Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
