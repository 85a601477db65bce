package config

import (
	"fmt"
	"strings"
	"time"
)

// durationField is one duration-valued setting kept as a string in the file
// so operators can write "90s" or "2m".
type durationField struct {
	path string
	raw  func(c *Config) string
	def  time.Duration
}

var durationFields = []durationField{
	{path: "api.timeout", raw: func(c *Config) string { return c.API.Timeout }, def: 10 * time.Second},
	{path: "schedule.tick_timeout", raw: func(c *Config) string { return c.Schedule.TickTimeout }, def: 2 * time.Minute},
	{path: "notifier.retry_base", raw: func(c *Config) string { return c.Notifier.RetryBase }, def: time.Second},
	{path: "notifier.retry_max_delay", raw: func(c *Config) string { return c.Notifier.RetryMaxDelay }, def: 30 * time.Second},
}

// parseDuration accepts an empty value (zero) or a non-negative Go duration.
func parseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0, got %s", path, s)
	}
	return d, nil
}

func (c *Config) validateDurations() []error {
	var errs []error
	for _, f := range durationFields {
		if _, err := parseDuration(f.path, f.raw(c)); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// duration returns the effective value of the named field. Unset, zero and
// invalid values fall back to the default; Validate reports the invalid ones.
func (c *Config) duration(path string) time.Duration {
	for _, f := range durationFields {
		if f.path != path {
			continue
		}
		if d, err := parseDuration(path, f.raw(c)); err == nil && d > 0 {
			return d
		}
		return f.def
	}
	panic("config: unknown duration field " + path)
}
