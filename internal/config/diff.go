package config

import (
	"reflect"
	"strings"

	logx "dipwatch/pkg/logx"
)

// SummarizeChange lists changed sections and safe log fields describing the
// new values. Secrets are reported only as set/unset.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	if oldCfg.Player != newCfg.Player || oldCfg.FloorTarget != newCfg.FloorTarget {
		changed = append(changed, "target")
		attrs = append(attrs,
			logx.String("player", newCfg.Player),
			logx.Float64("floor_target", newCfg.FloorTarget),
		)
	}
	if oldCfg.API != newCfg.API {
		changed = append(changed, "api")
		attrs = append(attrs,
			logx.String("api.base_url", newCfg.API.BaseURL),
			logx.String("api.timeout", newCfg.API.Timeout),
		)
	}
	if oldCfg.Data != newCfg.Data {
		changed = append(changed, "data")
		attrs = append(attrs,
			logx.String("data.heights_path", newCfg.Data.HeightsPath),
			logx.String("data.chart_path", newCfg.Data.ChartPath),
		)
	}
	if !reflect.DeepEqual(oldCfg.Chart, newCfg.Chart) {
		changed = append(changed, "chart")
		attrs = append(attrs,
			logx.Int("chart.width", newCfg.Chart.Width),
			logx.Int("chart.height", newCfg.Chart.Height),
			logx.Bool("chart.floor_labels", newCfg.Chart.UseFloorLabels()),
		)
	}
	if oldCfg.Schedule != newCfg.Schedule {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.String("schedule.spec", newCfg.Schedule.Spec),
			logx.String("schedule.timezone", strings.TrimSpace(newCfg.Schedule.Timezone)),
			logx.String("schedule.tick_timeout", newCfg.Schedule.TickTimeout),
		)
	}
	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newCfg.Notifier.Enabled),
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.Int("notifier.retry_max", newCfg.Notifier.RetryMax),
			logx.Bool("notifier.webhook_set", newCfg.Notifier.Webhook.URL != ""),
			logx.Bool("notifier.telegram_set", newCfg.Notifier.Telegram.Token != ""),
		)
	}
	if oldCfg.Publish != newCfg.Publish {
		changed = append(changed, "publish")
		attrs = append(attrs,
			logx.Bool("publish.git", newCfg.Publish.Git.Enabled),
			logx.Bool("publish.git_push", newCfg.Publish.Git.Push),
			logx.Bool("publish.s3", newCfg.Publish.S3.Enabled),
			logx.String("publish.s3_bucket", newCfg.Publish.S3.Bucket),
		)
	}
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", newCfg.HTTP.Addr),
			logx.Bool("http.pprof", newCfg.HTTP.Pprof),
		)
	}
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.ConsoleLogging() != newCfg.ConsoleLogging() ||
		oldCfg.Logging.File != newCfg.Logging.File {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.ConsoleLogging()),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}
	return changed, attrs
}

// NeedsRestart reports changed sections that hot reload does not apply.
// Logging, schedule and notifier changes are applied live.
func NeedsRestart(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if oldCfg.HTTP != newCfg.HTTP {
		out = append(out, "http")
	}
	if oldCfg.Data != newCfg.Data {
		out = append(out, "data")
	}
	if oldCfg.Player != newCfg.Player || oldCfg.FloorTarget != newCfg.FloorTarget {
		out = append(out, "target")
	}
	if oldCfg.API != newCfg.API {
		out = append(out, "api")
	}
	if !reflect.DeepEqual(oldCfg.Chart, newCfg.Chart) {
		out = append(out, "chart")
	}
	if oldCfg.Publish != newCfg.Publish {
		out = append(out, "publish")
	}
	return out
}

// LogConfig converts the logging section for logx.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.ConsoleLogging(),
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
	}
}
