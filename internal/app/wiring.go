package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dipwatch/internal/chart"
	"dipwatch/internal/config"
	"dipwatch/internal/leaderboard"
	"dipwatch/internal/notifier"
	"dipwatch/internal/publish"
	"dipwatch/internal/task/scheduler"
	logx "dipwatch/pkg/logx"
)

// tickSchedule is the scheduler entry name for the monitoring tick.
const tickSchedule = "tick"

func mapLeaderboardConfig(cfg *config.Config) leaderboard.Config {
	return leaderboard.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.APITimeout(),
		UserAgent: cfg.API.UserAgent,
	}
}

func mapChartOptions(cfg *config.Config) chart.Options {
	opts := chart.DefaultOptions()
	opts.Width = cfg.Chart.Width
	opts.Height = cfg.Chart.Height
	opts.FloorLabels = cfg.Chart.UseFloorLabels()
	if tz := strings.TrimSpace(cfg.Schedule.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			opts.Location = loc
		}
	}
	return opts
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Timezone: cfg.Schedule.Timezone}
}

// mapNotifier builds the delivery policy and the configured channels. A
// disabled notifier yields no channels.
func mapNotifier(cfg *config.Config) (notifier.Config, []notifier.Channel, error) {
	nc := cfg.Notifier
	ncfg := notifier.Config{
		Enabled:       nc.Enabled,
		RatePerSec:    nc.RatePerSec,
		RetryMax:      nc.RetryMax,
		RetryBase:     cfg.RetryBase(),
		RetryMaxDelay: cfg.RetryMaxDelay(),
		DedupWindow:   time.Minute,
	}
	if !nc.Enabled {
		return ncfg, nil, nil
	}

	var channels []notifier.Channel
	if u := strings.TrimSpace(nc.Webhook.URL); u != "" {
		w, err := notifier.NewWebhook(u, 10*time.Second)
		if err != nil {
			return ncfg, nil, fmt.Errorf("notifier.webhook: %w", err)
		}
		channels = append(channels, w)
	}
	if strings.TrimSpace(nc.Telegram.Token) != "" {
		tg, err := notifier.NewTelegram(notifier.TelegramConfig{
			Token:  nc.Telegram.Token,
			ChatID: int64(nc.Telegram.ChatID),
		}, 10*time.Second)
		if err != nil {
			return ncfg, nil, fmt.Errorf("notifier.telegram: %w", err)
		}
		channels = append(channels, tg)
	}
	return ncfg, channels, nil
}

// mapPublishers builds the enabled artifact publishers.
func mapPublishers(ctx context.Context, cfg *config.Config, log logx.Logger) (*publish.Set, error) {
	var pubs []publish.Publisher
	if g := cfg.Publish.Git; g.Enabled {
		pubs = append(pubs, publish.NewGit(publish.GitConfig{
			RepoDir:     g.RepoDir,
			Push:        g.Push,
			Remote:      g.Remote,
			Branch:      g.Branch,
			AuthorName:  g.AuthorName,
			AuthorEmail: g.AuthorEmail,
		}))
	}
	if sc := cfg.Publish.S3; sc.Enabled {
		s3p, err := publish.NewS3(ctx, publish.S3Config{
			Bucket:    sc.Bucket,
			Region:    sc.Region,
			Endpoint:  sc.Endpoint,
			Prefix:    sc.Prefix,
			PathStyle: sc.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("publish.s3: %w", err)
		}
		pubs = append(pubs, s3p)
	}
	if len(pubs) == 0 {
		return nil, nil
	}
	return publish.NewSet(log, pubs...), nil
}
