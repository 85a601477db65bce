package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides for secrets.
const (
	EnvWebhookURL     = "DIPWATCH_WEBHOOK_URL"
	EnvTelegramToken  = "DIPWATCH_TELEGRAM_TOKEN"
	EnvTelegramChatID = "DIPWATCH_TELEGRAM_CHAT_ID"
	EnvConfigPath     = "DIPWATCH_CONFIG"
)

// LoadDotEnv loads .env-style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// GetEnv returns the variable named key, or fallback if unset or empty.
func GetEnv(key, fallback string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return fallback
}

// ApplyEnv overlays secrets from the environment onto cfg.
func ApplyEnv(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	cfg.Notifier.Webhook.URL = GetEnv(EnvWebhookURL, cfg.Notifier.Webhook.URL)
	cfg.Notifier.Telegram.Token = GetEnv(EnvTelegramToken, cfg.Notifier.Telegram.Token)
	if s := GetEnv(EnvTelegramChatID, ""); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return errors.New(EnvTelegramChatID + ": not a number")
		}
		cfg.Notifier.Telegram.ChatID = ChatID(id)
	}
	return nil
}
