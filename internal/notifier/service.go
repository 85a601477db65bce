package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"time"

	logx "dipwatch/pkg/logx"

	"golang.org/x/time/rate"
)

var (
	ErrDisabled   = errors.New("notifier disabled")
	ErrNoChannels = errors.New("notifier: no channels configured")
)

// Service fans a message out to every channel with rate limit, retry with
// backoff, and a short dedup window.
//
// It is safe for concurrent use.
type Service struct {
	mu       sync.Mutex
	log      logx.Logger
	cfg      Config
	limiter  *rate.Limiter
	channels []Channel
	onResult ResultFunc

	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log logx.Logger, channels ...Channel) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:   log.With(logx.String("comp", "notifier")),
		dedup: map[string]time.Time{},
	}
	s.applyLocked(cfg, channels)
	return s
}

// OnResult registers a hook called once per channel and message.
func (s *Service) OnResult(fn ResultFunc) {
	s.mu.Lock()
	s.onResult = fn
	s.mu.Unlock()
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Channels lists configured channel names.
func (s *Service) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c.Name())
	}
	return out
}

// Apply swaps config and channels; used on config reload.
func (s *Service) Apply(cfg Config, channels ...Channel) {
	s.mu.Lock()
	s.applyLocked(cfg, channels)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config, channels []Channel) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	s.cfg = cfg
	s.channels = append([]Channel(nil), channels...)
	// Token bucket: burst = rate per sec.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Notify delivers m to every channel and returns the joined failures.
// A failing channel does not stop delivery to the others.
func (s *Service) Notify(ctx context.Context, m Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	channels := s.channels
	onResult := s.onResult
	s.mu.Unlock()

	if !cfg.Enabled {
		return ErrDisabled
	}
	if len(channels) == 0 {
		return ErrNoChannels
	}

	text := Format(m)
	if text == "" {
		return nil
	}

	var errs []error
	for _, ch := range channels {
		key := dedupKey(ch.Name(), text)
		if cfg.DedupWindow > 0 && !s.dedupAllow(key, cfg.DedupWindow) {
			s.log.Debug("notification deduped", logx.String("channel", ch.Name()))
			continue
		}
		err := s.sendWithRetry(ctx, cfg, lim, ch, text)
		s.appendHistory(ch.Name(), text, err)
		if onResult != nil {
			onResult(ch.Name(), err)
		}
		if err != nil {
			s.log.Warn("notification failed", logx.String("channel", ch.Name()), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		s.log.Info("notification sent", logx.String("channel", ch.Name()))
	}
	return errors.Join(errs...)
}

func (s *Service) sendWithRetry(ctx context.Context, cfg Config, lim *rate.Limiter, ch Channel, text string) error {
	maxAttempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		err := ch.Send(callCtx, text)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		s.log.Debug("notify send failed", logx.String("channel", ch.Name()), logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts || errors.Is(err, ErrPermanent) {
			break
		}

		delay := retryDelay(cfg, attempt)
		if delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		}
	}
	return lastErr
}

// Snapshot returns recent deliveries, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(channel, text string, err error) {
	it := HistoryItem{At: time.Now(), Channel: channel, Text: text}
	if err != nil {
		it.Error = err.Error()
	}
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > 100 {
		s.history = s.history[len(s.history)-100:]
	}
	s.hmu.Unlock()
}

// Format renders a message as plain text. Empty messages format to "".
func Format(m Message) string {
	title := strings.TrimSpace(m.Title)
	body := strings.TrimSpace(m.Text)
	switch {
	case title == "" && body == "":
		return ""
	case title == "":
		return prefixForPriority(m.Priority) + body
	case body == "":
		return prefixForPriority(m.Priority) + title
	}
	return prefixForPriority(m.Priority) + title + "\n" + body
}

func prefixForPriority(p int) string {
	switch {
	case p >= 9:
		return "🚨 "
	case p >= 7:
		return "🎉 "
	default:
		return ""
	}
}

func dedupKey(channel, text string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(channel))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) dedupAllow(key string, window time.Duration) bool {
	now := time.Now()
	s.dmu.Lock()
	defer s.dmu.Unlock()

	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	s.dedup[key] = now.Add(window)
	return true
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1 (first attempt), delay is for the NEXT attempt.
	base := cfg.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxD := cfg.RetryMaxDelay
	if maxD <= 0 {
		maxD = 10 * time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxD {
			d = maxD
			break
		}
	}
	// Jitter 0.7..1.3
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	j := 0.7 + rng.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d < 0 {
		return 0
	}
	if d > maxD {
		d = maxD
	}
	return d
}
