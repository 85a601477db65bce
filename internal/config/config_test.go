package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "dipwatch/pkg/logx"
)

func TestDecodeYAMLAppliesDefaults(t *testing.T) {
	t.Setenv(EnvWebhookURL, "")
	t.Setenv(EnvTelegramToken, "")
	t.Setenv(EnvTelegramChatID, "")
	raw := `
player: fajoogaloo
floor_target: 1938
schedule:
  spec: "*/5 * * * *"
  timezone: UTC
notifier:
  enabled: true
  telegram:
    token: "123:abc"
    chat_id: -100123
chart:
  floor_labels: false
`
	cfg, err := Decode("dipwatch.yaml", []byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Player != "fajoogaloo" || cfg.FloorTarget != 1938 {
		t.Fatalf("unexpected target: %+v", cfg)
	}
	if cfg.Data.HeightsPath != DefaultHeightsPath || cfg.API.BaseURL != DefaultBaseURL {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Data, cfg.API)
	}
	if cfg.Notifier.Telegram.ChatID != -100123 {
		t.Fatalf("chat id = %d", cfg.Notifier.Telegram.ChatID)
	}
	if cfg.Chart.UseFloorLabels() {
		t.Fatal("floor_labels should be false")
	}
	if cfg.APITimeout() != 10*time.Second || cfg.TickTimeout() != 2*time.Minute {
		t.Fatalf("durations: %v %v", cfg.APITimeout(), cfg.TickTimeout())
	}
	if !cfg.ConsoleLogging() {
		t.Fatal("console logging should default on")
	}
}

func TestDecodeJSONStrict(t *testing.T) {
	tests := map[string]string{
		"unknown field":  `{"player": "x", "colour": "red"}`,
		"trailing data":  `{"player": "x"} {}`,
		"bad duration":   `{"player": "x", "api": {"timeout": "soon"}}`,
		"missing player": `{"floor_target": 10}`,
		"bad timezone":   `{"player": "x", "schedule": {"timezone": "Mars/Olympus"}}`,
		"s3 no bucket":   `{"player": "x", "publish": {"s3": {"enabled": true}}}`,
		"chat id text":   `{"player": "x", "notifier": {"telegram": {"token": "t", "chat_id": "abc"}}}`,
	}
	for name, raw := range tests {
		name, raw := name, raw
		t.Run(name, func(t *testing.T) {
			if _, err := Decode("dipwatch.json", []byte(raw)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDurationFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Duration
		bad  bool
	}{
		{name: "unset", raw: "", want: 10 * time.Second},
		{name: "zero", raw: "0s", want: 10 * time.Second},
		{name: "set", raw: " 45s ", want: 45 * time.Second},
		{name: "negative", raw: "-1s", want: 10 * time.Second, bad: true},
		{name: "garbage", raw: "soon", want: 10 * time.Second, bad: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.API.Timeout = tt.raw
			if got := cfg.APITimeout(); got != tt.want {
				t.Fatalf("APITimeout = %v, want %v", got, tt.want)
			}
			errs := cfg.validateDurations()
			if tt.bad != (len(errs) > 0) {
				t.Fatalf("validateDurations = %v", errs)
			}
			if tt.bad && !strings.Contains(errs[0].Error(), "api.timeout") {
				t.Fatalf("error does not name the field: %v", errs[0])
			}
		})
	}
}

func TestApplyEnvOverlaysSecrets(t *testing.T) {
	t.Setenv(EnvWebhookURL, "https://discord.example/api/webhooks/1")
	t.Setenv(EnvTelegramToken, "999:zzz")
	t.Setenv(EnvTelegramChatID, "42")

	cfg, err := Decode("dipwatch.json", []byte(`{"player": "x", "notifier": {"webhook": {"url": "https://old"}}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Notifier.Webhook.URL != "https://discord.example/api/webhooks/1" {
		t.Fatalf("webhook url = %q", cfg.Notifier.Webhook.URL)
	}
	if cfg.Notifier.Telegram.Token != "999:zzz" || cfg.Notifier.Telegram.ChatID != 42 {
		t.Fatalf("telegram = %+v", cfg.Notifier.Telegram)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DIPWATCH_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DIPWATCH_TEST_DOTENV", "")
	os.Unsetenv("DIPWATCH_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := GetEnv("DIPWATCH_TEST_DOTENV", "fallback"); got != "from-file" {
		t.Fatalf("GetEnv = %q", got)
	}
}

func TestSummarizeChangeHidesSecrets(t *testing.T) {
	t.Parallel()
	a := Default()
	a.Player = "x"
	b := *a
	b.Notifier.Telegram.Token = "secret-token"
	b.Schedule.Spec = "5m"

	changed, _ := SummarizeChange(a, &b)
	if strings.Join(changed, ",") != "schedule,notifier" {
		t.Fatalf("changed = %v", changed)
	}

	var sb strings.Builder
	log := logx.NewWriter(&sb, "debug")
	_, attrs := SummarizeChange(a, &b)
	log.Info("config changed", attrs...)
	if strings.Contains(sb.String(), "secret-token") {
		t.Fatal("secret leaked into log")
	}
	if restart := NeedsRestart(a, &b); len(restart) != 0 {
		t.Fatalf("unexpected restart sections %v", restart)
	}
}

func TestManagerWatchPublishesValidChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dipwatch.yaml")
	write := func(s string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("player: fajoogaloo\n")

	m := NewManager(path, logx.Nop())
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)

	write("player: fajoogaloo\nunknown_key: 1\n") // rejected
	time.Sleep(150 * time.Millisecond)
	select {
	case <-sub:
		t.Fatal("invalid config was published")
	default:
	}

	write("player: fajoogaloo\nschedule:\n  spec: 5m\n")
	select {
	case cfg := <-sub:
		if cfg.Schedule.Spec != "5m" {
			t.Fatalf("unexpected spec %q", cfg.Schedule.Spec)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload not published")
	}
	if m.Get().Schedule.Spec != "5m" {
		t.Fatal("reload not committed")
	}

	cancel()
	<-done
}
