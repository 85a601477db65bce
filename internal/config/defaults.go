package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	DefaultFloorTarget  = 1500.0
	DefaultBaseURL      = "https://dips-plus-plus.xk.io"
	DefaultHeightsPath  = "data/heights.json"
	DefaultChartPath    = "charts/height_progress.png"
	DefaultScheduleSpec = "*/10 * * * *"
	DefaultHTTPAddr     = "127.0.0.1:9310"
)

// Default returns a config that only lacks the player name.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	c.Player = strings.TrimSpace(c.Player)
	if c.FloorTarget == 0 {
		c.FloorTarget = DefaultFloorTarget
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "10s"
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "dipwatch"
	}
	if c.Data.HeightsPath == "" {
		c.Data.HeightsPath = DefaultHeightsPath
	}
	if c.Data.ChartPath == "" {
		c.Data.ChartPath = DefaultChartPath
	}
	if c.Chart.Width <= 0 {
		c.Chart.Width = 1400
	}
	if c.Chart.Height <= 0 {
		c.Chart.Height = 800
	}
	if strings.TrimSpace(c.Schedule.Spec) == "" {
		c.Schedule.Spec = DefaultScheduleSpec
	}
	if c.Schedule.TickTimeout == "" {
		c.Schedule.TickTimeout = "2m"
	}
	if c.Notifier.RatePerSec <= 0 {
		c.Notifier.RatePerSec = 1
	}
	if c.Notifier.RetryBase == "" {
		c.Notifier.RetryBase = "1s"
	}
	if c.Notifier.RetryMaxDelay == "" {
		c.Notifier.RetryMaxDelay = "30s"
	}
	if c.Publish.Git.Remote == "" {
		c.Publish.Git.Remote = "origin"
	}
	if c.Publish.Git.RepoDir == "" {
		c.Publish.Git.RepoDir = "."
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks a config after defaults and env overlay.
func (c *Config) Validate() error {
	var errs []error
	if c.Player == "" {
		errs = append(errs, errors.New("player: required"))
	}
	if c.FloorTarget <= 0 || math.IsNaN(c.FloorTarget) || math.IsInf(c.FloorTarget, 0) {
		errs = append(errs, fmt.Errorf("floor_target: must be a positive number, got %v", c.FloorTarget))
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("api.base_url: must be an http(s) URL"))
	}
	errs = append(errs, c.validateDurations()...)
	if c.Notifier.RetryMax < 0 {
		errs = append(errs, errors.New("notifier.retry_max: must be >= 0"))
	}
	if tz := strings.TrimSpace(c.Schedule.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
		}
	}
	if c.Notifier.Telegram.Token != "" && c.Notifier.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("notifier.telegram.chat_id: required when token is set"))
	}
	if c.Publish.S3.Enabled && strings.TrimSpace(c.Publish.S3.Bucket) == "" {
		errs = append(errs, errors.New("publish.s3.bucket: required when s3 is enabled"))
	}
	return errors.Join(errs...)
}

func (c *Config) APITimeout() time.Duration    { return c.duration("api.timeout") }
func (c *Config) TickTimeout() time.Duration   { return c.duration("schedule.tick_timeout") }
func (c *Config) RetryBase() time.Duration     { return c.duration("notifier.retry_base") }
func (c *Config) RetryMaxDelay() time.Duration { return c.duration("notifier.retry_max_delay") }

// ConsoleLogging reports the effective logging.console flag.
func (c *Config) ConsoleLogging() bool {
	return c.Logging.Console == nil || *c.Logging.Console
}
