package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MinInterval bounds how often the leaderboard may be polled.
const MinInterval = time.Minute

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec is a normalized schedule.
//
// A schedule is either a 5-field cron expression or descriptor ("*/10 * * * *",
// "@hourly"), or a fixed interval written as a Go duration ("10m") or as
// "@every 10m". Intervals are spread per job name so several instances do
// not hit the API on the same second.
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // cron, duration or every
}

// CronSpec returns the expression shown in logs and status.
func (p ParsedSpec) CronSpec() string {
	if p.Kind == SpecInterval {
		return "@every " + p.Every.String()
	}
	return p.Cron
}

var errEmptySchedule = errors.New("schedule required")

// ParseSchedule normalizes raw. A leading "cron:" forces cron parsing.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, errEmptySchedule
	}

	if rest, ok := cutPrefixFold(s, "cron:"); ok {
		if rest == "" {
			return ParsedSpec{}, fmt.Errorf("cron: %w", errEmptySchedule)
		}
		return ParsedSpec{Kind: SpecCron, Cron: rest, Source: "cron"}, nil
	}

	if rest, ok := cutPrefixFold(s, "@every"); ok {
		d, err := parseEvery(rest)
		if err != nil {
			return ParsedSpec{}, fmt.Errorf("schedule %q: %w", raw, err)
		}
		return ParsedSpec{Kind: SpecInterval, Every: d, Source: "every"}, nil
	}

	if strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t") {
		return ParsedSpec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
	}

	d, err := parseEvery(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid schedule %q (want cron like '*/10 * * * *' or an interval like '10m'): %w", raw, err)
	}
	return ParsedSpec{Kind: SpecInterval, Every: d, Source: "duration"}, nil
}

func parseEvery(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.New("interval required")
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < MinInterval {
		return 0, fmt.Errorf("interval %s is below the %s minimum", d, MinInterval)
	}
	return d.Truncate(time.Second), nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(s[len(prefix):]), true
}
