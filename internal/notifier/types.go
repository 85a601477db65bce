package notifier

import (
	"context"
	"time"
)

// Config controls delivery policy shared by every channel.
type Config struct {
	Enabled       bool
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	// DedupWindow suppresses an identical message on the same channel.
	DedupWindow time.Duration
	SendTimeout time.Duration
}

// Message is one notification.
type Message struct {
	Title    string
	Text     string
	Priority int // >= 7 marks the message as important
}

// Channel delivers plain text somewhere.
type Channel interface {
	Name() string
	Send(ctx context.Context, text string) error
}

type HistoryItem struct {
	At      time.Time `json:"at"`
	Channel string    `json:"channel"`
	Text    string    `json:"text"`
	Error   string    `json:"error,omitempty"`
}

// ResultFunc observes each final per-channel outcome.
type ResultFunc func(channel string, err error)
