package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dipwatch/internal/heightlog"
	logx "dipwatch/pkg/logx"
)

type fakeProvider struct {
	status Status
	health error
}

func (f fakeProvider) Status(ctx context.Context) (Status, error) { return f.status, nil }
func (f fakeProvider) Healthy() error                             { return f.health }

func newTestServer(t *testing.T, prov Provider, cfg Config) *httptest.Server {
	t.Helper()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "dipwatch_ticks_total 1\n")
	})
	ts := httptest.NewServer(New(cfg, prov, metrics, logx.Nop()).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, b
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		health error
		want   int
	}{
		{name: "healthy", want: http.StatusOK},
		{name: "failing", health: errors.New("config.watch: boom"), want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, fakeProvider{health: tt.health}, Config{})
			resp, _ := get(t, ts.URL+"/healthz")
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestStatusJSON(t *testing.T) {
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	prov := fakeProvider{status: Status{
		Player:      "fajoogaloo",
		FloorTarget: 1938,
		Summary:     heightlog.Summary{Player: "fajoogaloo", Checks: 3},
		LastTick:    &TickStatus{At: at, LiveHeight: heightlog.Height(812.5), IsPlaying: true},
	}}
	ts := newTestServer(t, prov, Config{})

	resp, body := get(t, ts.URL+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got Status
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, body)
	}
	if got.Player != "fajoogaloo" || got.Summary.Checks != 3 {
		t.Fatalf("unexpected status %+v", got)
	}
	if got.LastTick == nil || got.LastTick.LiveHeight == nil || *got.LastTick.LiveHeight != 812.5 {
		t.Fatalf("unexpected last tick %+v", got.LastTick)
	}
}

func TestServesArtifacts(t *testing.T) {
	dir := t.TempDir()
	chart := filepath.Join(dir, "chart.png")
	if err := os.WriteFile(chart, []byte("\x89PNG fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, fakeProvider{}, Config{
		ChartPath:   chart,
		HeightsPath: filepath.Join(dir, "missing.json"),
	})

	resp, body := get(t, ts.URL+"/chart.png")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" || string(body) != "\x89PNG fake" {
		t.Fatalf("chart: status=%d type=%q body=%q", resp.StatusCode, resp.Header.Get("Content-Type"), body)
	}
	resp, _ = get(t, ts.URL+"/heights.json")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing heights: status = %d", resp.StatusCode)
	}
}

func TestMetricsAndPprofMount(t *testing.T) {
	ts := newTestServer(t, fakeProvider{}, Config{Addr: "127.0.0.1:0", Pprof: true})
	if resp, body := get(t, ts.URL+"/metrics"); resp.StatusCode != http.StatusOK || len(body) == 0 {
		t.Fatalf("metrics: status=%d", resp.StatusCode)
	}
	if resp, _ := get(t, ts.URL+"/debug/pprof/"); resp.StatusCode != http.StatusOK {
		t.Fatalf("pprof: status=%d", resp.StatusCode)
	}

	public := newTestServer(t, fakeProvider{}, Config{Addr: "0.0.0.0:9310", Pprof: true})
	if resp, _ := get(t, public.URL+"/debug/pprof/"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("pprof on public bind: status=%d", resp.StatusCode)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:9310": true,
		"localhost:80":   true,
		"[::1]:9310":     true,
		"0.0.0.0:9310":   false,
		":9310":          false,
		"garbage":        false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
