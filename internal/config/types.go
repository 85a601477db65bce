package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("10s", "5m"). Secrets may be left empty
// and supplied through the environment; see ApplyEnv.
type Config struct {
	Player      string  `json:"player"`
	FloorTarget float64 `json:"floor_target"`

	API      APIConfig      `json:"api"`
	Data     DataConfig     `json:"data"`
	Chart    ChartConfig    `json:"chart"`
	Schedule ScheduleConfig `json:"schedule"`
	Notifier NotifierConfig `json:"notifier"`
	Publish  PublishConfig  `json:"publish"`
	HTTP     HTTPConfig     `json:"http"`
	Logging  LoggingConfig  `json:"logging"`
}

type APIConfig struct {
	BaseURL   string `json:"base_url"`
	Timeout   string `json:"timeout"`
	UserAgent string `json:"user_agent"`
}

type DataConfig struct {
	HeightsPath string `json:"heights_path"`
	ChartPath   string `json:"chart_path"`
}

type ChartConfig struct {
	Width       int   `json:"width"`
	Height      int   `json:"height"`
	FloorLabels *bool `json:"floor_labels,omitempty"` // default true
}

// UseFloorLabels reports the effective floor_labels flag.
func (c ChartConfig) UseFloorLabels() bool {
	return c.FloorLabels == nil || *c.FloorLabels
}

type ScheduleConfig struct {
	Spec        string `json:"spec"`
	Timezone    string `json:"timezone"`
	TickTimeout string `json:"tick_timeout"`
}

type NotifierConfig struct {
	Enabled       bool           `json:"enabled"`
	RatePerSec    int            `json:"rate_per_sec"`
	RetryMax      int            `json:"retry_max"`
	RetryBase     string         `json:"retry_base"`
	RetryMaxDelay string         `json:"retry_max_delay"`
	Webhook       WebhookConfig  `json:"webhook"`
	Telegram      TelegramConfig `json:"telegram"`
}

type WebhookConfig struct {
	URL string `json:"url"`
}

type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID ChatID `json:"chat_id"`
}

// ChatID accepts a number or a numeric string.
type ChatID int64

func (c *ChatID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("chat_id %q: %w", s, err)
	}
	*c = ChatID(v)
	return nil
}

func (c ChatID) MarshalJSON() ([]byte, error) { return json.Marshal(int64(c)) }

type PublishConfig struct {
	Git GitConfig `json:"git"`
	S3  S3Config  `json:"s3"`
}

type GitConfig struct {
	Enabled     bool   `json:"enabled"`
	RepoDir     string `json:"repo_dir"`
	Push        bool   `json:"push"`
	Remote      string `json:"remote"`
	Branch      string `json:"branch"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
}

type S3Config struct {
	Enabled   bool   `json:"enabled"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Prefix    string `json:"prefix"`
	PathStyle bool   `json:"path_style"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Pprof   bool   `json:"pprof"` // mounts /debug/pprof on the status server
}

type LoggingConfig struct {
	Level   string     `json:"level"`
	Console *bool      `json:"console,omitempty"` // default true
	File    FileConfig `json:"file"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
