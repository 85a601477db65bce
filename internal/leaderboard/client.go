package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "dipwatch/pkg/logx"
)

// DefaultBaseURL is the public Deep Dip 2 tracker.
const DefaultBaseURL = "https://dips-plus-plus.xk.io"

// ErrPlayerNotFound is returned when the player is not on the global leaderboard.
var ErrPlayerNotFound = errors.New("leaderboard: player not found")

// Reading is one observation of a player.
type Reading struct {
	Height    *float64 // nil when there is no live session
	IsPlaying bool
	PB        *float64  // personal best from the global leaderboard
	At        time.Time // timestamp of the newest live point, zero if unknown
	WSID      string
}

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the tracker API.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "dipwatch"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.http = h
	}
	return c
}

type entry struct {
	Name   string   `json:"name"`
	WSID   string   `json:"wsid"`
	Height *float64 `json:"height"`
}

type liveHeights struct {
	Last5Points [][]json.RawMessage `json:"last_5_points"`
}

// Fetch resolves player on the global leaderboard and reads their newest live
// height. An empty live series means the player is not currently playing.
func (c *Client) Fetch(ctx context.Context, player string) (Reading, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return Reading{}, fmt.Errorf("leaderboard: empty player name")
	}

	var board []entry
	if err := c.getJSON(ctx, "/leaderboard/global", &board); err != nil {
		return Reading{}, err
	}
	var found *entry
	for i := range board {
		if strings.EqualFold(strings.TrimSpace(board[i].Name), player) {
			found = &board[i]
			break
		}
	}
	if found == nil || found.WSID == "" {
		return Reading{}, fmt.Errorf("%w: %q", ErrPlayerNotFound, player)
	}

	out := Reading{WSID: found.WSID}
	if found.Height != nil && finite(*found.Height) {
		pb := *found.Height
		out.PB = &pb
	}

	var live liveHeights
	if err := c.getJSON(ctx, "/live_heights/"+url.PathEscape(found.WSID), &live); err != nil {
		return Reading{}, err
	}
	if len(live.Last5Points) == 0 {
		c.log.Debug("no live session", logx.String("player", player), logx.Height("pb", out.PB))
		return out, nil
	}

	h, at, err := parsePoint(live.Last5Points[0])
	if err != nil {
		return Reading{}, fmt.Errorf("leaderboard: live_heights for %s: %w", found.WSID, err)
	}
	out.Height = &h
	out.IsPlaying = true
	out.At = at
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("leaderboard: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("leaderboard: GET %s: http=%d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(dst); err != nil {
		return fmt.Errorf("leaderboard: decode %s: %w", path, err)
	}
	return nil
}

// parsePoint reads a [height, ts] pair. ts may be unix seconds, unix millis
// or an RFC3339 string; an unreadable ts is not fatal.
func parsePoint(p []json.RawMessage) (float64, time.Time, error) {
	if len(p) == 0 {
		return 0, time.Time{}, fmt.Errorf("empty point")
	}
	var h float64
	if err := json.Unmarshal(p[0], &h); err != nil {
		return 0, time.Time{}, fmt.Errorf("height: %w", err)
	}
	if !finite(h) {
		return 0, time.Time{}, fmt.Errorf("height is not finite")
	}
	if len(p) < 2 {
		return h, time.Time{}, nil
	}
	var n float64
	if err := json.Unmarshal(p[1], &n); err == nil && n > 0 {
		if n > 1e12 {
			return h, time.UnixMilli(int64(n)).UTC(), nil
		}
		sec, frac := math.Modf(n)
		return h, time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	}
	var s string
	if err := json.Unmarshal(p[1], &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return h, t.UTC(), nil
		}
	}
	return h, time.Time{}, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
